// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AdminActionTable represents the 'admin_actions' audit table
type AdminActionTable struct {
	Table      string
	ID         string
	AdminID    string
	Action     string
	TargetType string
	TargetID   string
	Note       string
	CreatedAt  string
}

var AdminAction = AdminActionTable{
	Table:      "admin_actions",
	ID:         "id",
	AdminID:    "admin_id",
	Action:     "action",
	TargetType: "target_type",
	TargetID:   "target_id",
	Note:       "note",
	CreatedAt:  "created_at",
}
