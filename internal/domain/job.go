package domain

import "time"

// JobStatus represents the state of a generation job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobKind distinguishes text verdicts from verdict images.
type JobKind string

const (
	JobKindVerdict JobKind = "verdict"
	JobKindImage   JobKind = "image"
)

// Job represents one asynchronous generation request.
type Job struct {
	ID          string    `json:"item_id" db:"id"`
	Kind        JobKind   `json:"kind" db:"kind"`
	CaseDetails string    `json:"case_details" db:"case_details"`
	Verdict     string    `json:"verdict,omitempty" db:"verdict"`
	Artifact    *string   `json:"artifact,omitempty" db:"artifact"`
	Status      JobStatus `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NewJob returns a job in the processing state.
func NewJob(id string, kind JobKind, caseDetails, verdict string) Job {
	now := time.Now().UTC()
	return Job{
		ID:          id,
		Kind:        kind,
		CaseDetails: caseDetails,
		Verdict:     verdict,
		Status:      JobStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ArtifactRef returns the artifact or an empty string when absent.
func (j Job) ArtifactRef() string {
	if j.Artifact == nil {
		return ""
	}
	return *j.Artifact
}
