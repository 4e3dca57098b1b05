// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination parses page/limit query parameters and builds the
// "meta" block of list responses such as GET /admin/users.
package pagination

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	// DefaultLimit applies when limit is absent or out of range.
	DefaultLimit = 20
	// MaxLimit caps a single page.
	MaxLimit = 100
	// DefaultPage is the first page; pages are 1-indexed.
	DefaultPage = 1
)

// Params is a validated page request.
type Params struct {
	Page  int
	Limit int
}

// Offset is the number of rows skipped before this page.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta describes the returned page.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewMeta derives TotalPages from total and limit.
func NewMeta(page, limit, total int) Meta {
	meta := Meta{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		meta.TotalPages = (total + limit - 1) / limit
	}
	return meta
}

// Parse reads "page" and "limit". Garbage, non-positive or oversized values
// fall back to the defaults instead of failing the request.
func Parse(values url.Values) Params {
	params := Params{
		Page:  positiveInt(values.Get("page"), DefaultPage),
		Limit: positiveInt(values.Get("limit"), DefaultLimit),
	}
	if params.Limit > MaxLimit {
		params.Limit = DefaultLimit
	}
	return params
}

// FromRequest is [Parse] over the request's query string.
func FromRequest(r *http.Request) Params {
	return Parse(r.URL.Query())
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
