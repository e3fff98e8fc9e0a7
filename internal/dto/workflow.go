package dto

// CreateWorkflowLevel defines one level in a workflow creation payload.
type CreateWorkflowLevel struct {
	LevelNumber int    `json:"levelNumber" validate:"required,min=1"`
	Name        string `json:"name" validate:"required,max=120"`
	SLAHours    int    `json:"slaHours" validate:"min=0"`
}

// CreateWorkflowRequest registers a workflow with its ordered levels.
type CreateWorkflowRequest struct {
	Code         string                `json:"code" validate:"required,max=80"`
	Name         string                `json:"name" validate:"required,max=160"`
	ApprovalType string                `json:"approvalType" validate:"required,max=80"`
	Description  string                `json:"description" validate:"max=500"`
	Levels       []CreateWorkflowLevel `json:"levels" validate:"required,min=1,dive"`
}
