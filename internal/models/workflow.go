package models

import "time"

// ApprovalWorkflow defines a named, ordered chain of approval levels.
// Once an in-flight approval references a workflow its level structure is
// never mutated; deactivation only removes it from type resolution.
type ApprovalWorkflow struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
	// ApprovalType is the business key resolved at approval creation
	// (e.g. "staff_boarding"). One active workflow serves each type.
	ApprovalType string    `db:"approval_type" json:"approval_type"`
	Description  *string   `db:"description" json:"description,omitempty"`
	TotalLevels  int       `db:"total_levels" json:"total_levels"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Levels []ApprovalWorkflowLevel `db:"-" json:"levels,omitempty"`
}

// Level returns the workflow level with the given number, or nil.
func (w *ApprovalWorkflow) Level(number int) *ApprovalWorkflowLevel {
	for i := range w.Levels {
		if w.Levels[i].LevelNumber == number {
			return &w.Levels[i]
		}
	}
	return nil
}

// ApprovalWorkflowLevel is one stage within a workflow. SLAHours is the
// number of hours allotted to the level before the approval becomes overdue.
type ApprovalWorkflowLevel struct {
	ID          string `db:"id" json:"id"`
	WorkflowID  string `db:"workflow_id" json:"workflow_id"`
	LevelNumber int    `db:"level_number" json:"level_number"`
	Name        string `db:"name" json:"name"`
	SLAHours    int    `db:"sla_hours" json:"sla_hours"`
}
