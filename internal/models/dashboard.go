package models

import "time"

// ApprovalDashboardSummary aggregates counts for the approvals dashboard.
type ApprovalDashboardSummary struct {
	Pending     int            `json:"pending"`
	Approved    int            `json:"approved"`
	Rejected    int            `json:"rejected"`
	Overdue     int            `json:"overdue"`
	ByModule    map[string]int `json:"by_module"`
	ByPriority  map[string]int `json:"by_priority"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ApprovalStatusCount is one row of the grouped status aggregation.
type ApprovalStatusCount struct {
	Status ApprovalStatus `db:"status" json:"status"`
	Count  int            `db:"count" json:"count"`
}

// ApprovalGroupCount is one row of a grouped dimension aggregation.
type ApprovalGroupCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}
