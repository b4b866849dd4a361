package dtos

import "github.com/google/uuid"

type JobCreationRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	JobTitle    string    `json:"job_title" binding:"required"`
	CompanyName string    `json:"company_name" binding:"required"`

	// Optional fields
	JobLink        string `json:"job_link"`
	JobDescription string `json:"job_description"`
	Status         string `json:"status"` // defaults to "applied" if empty
}

type JobStatusUpdateRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Status string    `json:"status" binding:"required"`
}
