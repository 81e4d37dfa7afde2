package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/service"
)

// JobService is the generation API consumed by JobHandler.
type JobService interface {
	SubmitVerdict(ctx context.Context, in service.VerdictInput) (*domain.Job, error)
	SubmitImage(ctx context.Context, in service.ImageInput) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
}

// JobHandler handles generation job endpoints.
type JobHandler struct {
	jobs JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type generateVerdictRequest struct {
	CaseDetails      string `json:"case_details" validate:"required"`
	FrustrationLevel any    `json:"frustration_level"`
}

type generateImageRequest struct {
	CaseDetails      string `json:"case_details" validate:"required"`
	Verdict          string `json:"verdict" validate:"required"`
	FrustrationLevel any    `json:"frustration_level"`
}

type jobLookupRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type submitResponse struct {
	ItemID string           `json:"item_id"`
	Status domain.JobStatus `json:"status"`
}

type jobResponse struct {
	ItemID   string           `json:"item_id"`
	Kind     domain.JobKind   `json:"kind"`
	Status   domain.JobStatus `json:"status"`
	Artifact *string          `json:"artifact"`
	ImageURL *string          `json:"image_url"`
}

func toJobResponse(j *domain.Job) jobResponse {
	resp := jobResponse{
		ItemID:   j.ID,
		Kind:     j.Kind,
		Status:   j.Status,
		Artifact: j.Artifact,
	}
	if j.Kind == domain.JobKindImage {
		resp.ImageURL = j.Artifact
	}
	return resp
}

// GenerateVerdict starts a text verdict job.
func (h *JobHandler) GenerateVerdict(c echo.Context) error {
	var req generateVerdictRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	job, err := h.jobs.SubmitVerdict(c.Request().Context(), service.VerdictInput{
		CaseDetails:      req.CaseDetails,
		FrustrationLevel: levelString(req.FrustrationLevel),
	})
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, submitResponse{ItemID: job.ID, Status: job.Status})
}

// GenerateVerdictImage starts a verdict image job.
func (h *JobHandler) GenerateVerdictImage(c echo.Context) error {
	var req generateImageRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	job, err := h.jobs.SubmitImage(c.Request().Context(), service.ImageInput{
		CaseDetails:      req.CaseDetails,
		Verdict:          req.Verdict,
		FrustrationLevel: levelString(req.FrustrationLevel),
	})
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, submitResponse{ItemID: job.ID, Status: job.Status})
}

// GetImageURL looks a job up by the item_id in the request body.
func (h *JobHandler) GetImageURL(c echo.Context) error {
	var req jobLookupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.lookup(c, req.ItemID)
}

// GetJob looks a job up by path parameter.
func (h *JobHandler) GetJob(c echo.Context) error {
	return h.lookup(c, c.Param("id"))
}

func (h *JobHandler) lookup(c echo.Context, id string) error {
	job, err := h.jobs.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, toJobResponse(job))
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	return c.Validate(req)
}

// levelString accepts the frustration level as a JSON number or string.
func levelString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
