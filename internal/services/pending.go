package services

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/models"
)

// PendingKind discriminates the closed set of multi-turn operations a
// conversation can be waiting on.
type PendingKind string

const (
	PendingNewJob     PendingKind = "new_job"
	PendingSelection  PendingKind = "selection"
	PendingBulkUpdate PendingKind = "bulk_update"
	PendingDeletion   PendingKind = "deletion"
)

// metadataPendingKey is the single metadata slot holding the live pending
// operation. Staging a new operation of any kind replaces it, which keeps
// the at-most-one-per-kind invariant trivially true.
const metadataPendingKey = "pending"

// PendingJobFields carries the partially-known record of a pending_new_job.
type PendingJobFields struct {
	JobTitle       string `json:"job_title,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
	JobLink        string `json:"job_link,omitempty"`
	JobDescription string `json:"job_description,omitempty"`
	Status         string `json:"status,omitempty"`
}

// JobCandidate is one entry of a 1-indexed disambiguation list.
type JobCandidate struct {
	ID          uuid.UUID `json:"id"`
	JobTitle    string    `json:"job_title"`
	CompanyName string    `json:"company_name"`
}

// PendingOperation is the tagged union persisted in conversation metadata.
// Kind decides which of the remaining fields are meaningful.
type PendingOperation struct {
	Kind PendingKind `json:"kind"`

	// new_job
	Job *PendingJobFields `json:"job,omitempty"`

	// selection / bulk_update / deletion
	Status string `json:"status,omitempty"`

	// selection: ordered candidates; index replies are 1-based and resolve
	// against this exact list, never a re-run search.
	Candidates []JobCandidate `json:"candidates,omitempty"`

	// bulk_update
	Count int `json:"count,omitempty"`

	// bulk_update / deletion: the id set captured at staging time.
	JobIDs []uuid.UUID `json:"job_ids,omitempty"`

	// deletion
	Titles  []string `json:"titles,omitempty"`
	Company string   `json:"company,omitempty"`
}

// encodePending stores op under the pending slot of a metadata map.
func encodePending(metadata map[string]any, op *PendingOperation) map[string]any {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if op == nil {
		delete(metadata, metadataPendingKey)
		return metadata
	}
	// Round-trip through JSON so the stored shape matches the JSONB column.
	b, err := json.Marshal(op)
	if err != nil {
		return metadata
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return metadata
	}
	metadata[metadataPendingKey] = m
	return metadata
}

// decodePending reads the pending slot; returns nil when absent or when the
// stored shape has drifted beyond recognition.
func decodePending(metadata map[string]any) *PendingOperation {
	if metadata == nil {
		return nil
	}
	raw, ok := metadata[metadataPendingKey]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var op PendingOperation
	if err := json.Unmarshal(b, &op); err != nil {
		return nil
	}
	switch op.Kind {
	case PendingNewJob, PendingSelection, PendingBulkUpdate, PendingDeletion:
		return &op
	default:
		return nil
	}
}

// mergeExtraction folds newly extracted fields into pending job fields
// without overwriting anything already known.
func mergeExtraction(known *PendingJobFields, ex JobExtraction) *PendingJobFields {
	merged := &PendingJobFields{}
	if known != nil {
		*merged = *known
	}
	if merged.JobTitle == "" {
		merged.JobTitle = ex.JobTitle
	}
	if merged.CompanyName == "" {
		merged.CompanyName = ex.CompanyName
	}
	if merged.JobLink == "" {
		merged.JobLink = ex.JobLink
	}
	if merged.JobDescription == "" {
		merged.JobDescription = ex.JobDescription
	}
	if merged.Status == "" && ex.Status != nil {
		merged.Status = ex.Status.String()
	}
	return merged
}

func (p *PendingJobFields) missingRequired() []string {
	var missing []string
	if p.JobTitle == "" {
		missing = append(missing, "job_title")
	}
	if p.CompanyName == "" {
		missing = append(missing, "company_name")
	}
	return missing
}

func (p *PendingJobFields) status() models.JobStatus {
	if p.Status != "" && models.JobStatus(p.Status).IsValid() {
		return models.JobStatus(p.Status)
	}
	return models.StatusApplied
}
