// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/riyamaga/internal/platform/middleware"
	requestutil "github.com/taibuivan/riyamaga/internal/platform/request"
	"github.com/taibuivan/riyamaga/internal/platform/respond"
	"github.com/taibuivan/riyamaga/internal/platform/sec"
	"github.com/taibuivan/riyamaga/internal/platform/validate"
	"github.com/taibuivan/riyamaga/internal/users/auth"
	"github.com/taibuivan/riyamaga/pkg/pagination"
)

// Handler implements the account and admin endpoints.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] with the authenticated account endpoints.
//
// requireAuth must be the bearer gate; /admin additionally requires ADMIN.
func (handler *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", handler.getMe)

		r.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.RequireRole(sec.RoleAdmin))
			admin.Get("/users", handler.listUsers)
			admin.Patch("/users/{id}/status", handler.updateStatus)
		})
	})

	return router
}

type meResponse struct {
	respond.Ack
	User *auth.PublicUser `json:"user"`
}

type updateStatusRequest struct {
	Status         string     `json:"status"`
	SuspendedUntil *time.Time `json:"suspended_until"`
	Note           *string    `json:"note"`
}

/*
GET /me

Response:
  - 200: The caller's sanitised profile
  - 401/403: From the auth gate
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.GetProfile(request.Context(), identity.ID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, meResponse{Ack: respond.Success(), User: user.Public()})
}

/*
GET /admin/users?q=&status=&page=&limit=

Response:
  - 200: Paginated [UserSummary] items, newest first
  - 400: Unknown status filter
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	filter := ListFilter{
		Query:  query.Get("q"),
		Params: pagination.FromRequest(request),
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := sec.ParseStatus(raw)
		if !ok {
			respond.Error(writer, request, validate.RequiredError(FieldStatus, "Must be one of: ACTIVE, SUSPENDED, BANNED"))
			return
		}
		filter.Status = status
	}

	items, meta, err := handler.accountService.ListUsers(request.Context(), filter)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, items, meta)
}

/*
PATCH /admin/users/{id}/status

Request:
  - Body: updateStatusRequest (Status, SuspendedUntil, Note)

Response:
  - 200: ok
  - 400: VALIDATION_ERROR
  - 404: NOT_FOUND
*/
func (handler *Handler) updateStatus(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID := requestutil.Param(request, "id")
	validator := &validate.Validator{}
	if err := validator.UUID(FieldID, userID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateStatusRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.accountService.UpdateStatus(request.Context(), identity, userID, StatusInput{
		Status:         input.Status,
		SuspendedUntil: input.SuspendedUntil,
		Note:           input.Note,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, respond.Success())
}
