package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sumire/verdictrelay/internal/async"
	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/openai"
)

// JobStore defines the job data access interface consumed by GenerationService.
type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Complete(ctx context.Context, id, artifact string) error
	Fail(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.Job, error)
}

// TextGenerator produces a chat completion.
type TextGenerator interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
}

// ImageGenerator produces an image and fetches its bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, size string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// ArtifactStore persists generated files and returns their public URL.
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// VerdictInput is the request for a text verdict.
type VerdictInput struct {
	CaseDetails      string
	FrustrationLevel string
}

// ImageInput is the request for a verdict image.
type ImageInput struct {
	CaseDetails      string
	Verdict          string
	FrustrationLevel string
}

// GenerationService creates jobs and runs generation in the background.
type GenerationService struct {
	jobs      JobStore
	text      TextGenerator
	images    ImageGenerator
	artifacts ArtifactStore
	tasks     async.Submitter
	imageSize string
	log       *slog.Logger
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(
	jobs JobStore,
	text TextGenerator,
	images ImageGenerator,
	artifacts ArtifactStore,
	tasks async.Submitter,
	imageSize string,
	logger *slog.Logger,
) *GenerationService {
	if imageSize == "" {
		imageSize = "1024x1024"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		jobs:      jobs,
		text:      text,
		images:    images,
		artifacts: artifacts,
		tasks:     tasks,
		imageSize: imageSize,
		log:       logger,
	}
}

// SubmitVerdict records a text job and starts generating it. The returned job
// is always in the processing state.
func (s *GenerationService) SubmitVerdict(ctx context.Context, in VerdictInput) (*domain.Job, error) {
	if strings.TrimSpace(in.CaseDetails) == "" {
		return nil, &domain.ValidationError{Field: "case_details", Message: "is required"}
	}

	job := domain.NewJob(uuid.NewString(), domain.JobKindVerdict, in.CaseDetails, "")
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create verdict job: %w", err)
	}

	messages := verdictMessages(in.CaseDetails, domain.MoodFromLevel(in.FrustrationLevel))
	err := s.tasks.Submit("verdict:"+job.ID, func(ctx context.Context) {
		s.runTextGeneration(ctx, job.ID, messages)
	})
	if err != nil {
		s.fail(ctx, job.ID)
		return nil, fmt.Errorf("schedule verdict job: %w: %w", domain.ErrUnavailable, err)
	}

	s.log.Info("verdict job submitted", "job_id", job.ID)
	return &job, nil
}

// SubmitImage records an image job and starts generating it.
func (s *GenerationService) SubmitImage(ctx context.Context, in ImageInput) (*domain.Job, error) {
	if strings.TrimSpace(in.CaseDetails) == "" {
		return nil, &domain.ValidationError{Field: "case_details", Message: "is required"}
	}
	if strings.TrimSpace(in.Verdict) == "" {
		return nil, &domain.ValidationError{Field: "verdict", Message: "is required"}
	}

	job := domain.NewJob(uuid.NewString(), domain.JobKindImage, in.CaseDetails, in.Verdict)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create image job: %w", err)
	}

	mood := domain.MoodFromLevel(in.FrustrationLevel)
	prompt := imagePrompt(in.CaseDetails, in.Verdict, mood)
	size := s.imageSize
	err := s.tasks.Submit("image:"+job.ID, func(ctx context.Context) {
		s.runImageGeneration(ctx, job.ID, prompt, size)
	})
	if err != nil {
		s.fail(ctx, job.ID)
		return nil, fmt.Errorf("schedule image job: %w: %w", domain.ErrUnavailable, err)
	}

	s.log.Info("image job submitted", "job_id", job.ID, "mood", mood)
	return &job, nil
}

// Get returns the current state of a job.
func (s *GenerationService) Get(ctx context.Context, id string) (*domain.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &domain.ValidationError{Field: "item_id", Message: "is required"}
	}
	return s.jobs.FindByID(ctx, id)
}

func (s *GenerationService) runTextGeneration(ctx context.Context, jobID string, messages []openai.Message) {
	defer s.failOnPanic(ctx, jobID)

	text, err := s.text.Complete(ctx, messages)
	if err != nil {
		s.log.Error("verdict generation failed", "job_id", jobID, "error", err)
		s.fail(ctx, jobID)
		return
	}
	s.complete(ctx, jobID, text)
}

func (s *GenerationService) runImageGeneration(ctx context.Context, jobID, prompt, size string) {
	defer s.failOnPanic(ctx, jobID)

	url, err := s.images.GenerateImage(ctx, prompt, size)
	if err != nil {
		s.log.Error("image generation failed", "job_id", jobID, "error", err)
		s.fail(ctx, jobID)
		return
	}

	data, err := s.images.Download(ctx, url)
	if err != nil {
		s.log.Error("image download failed", "job_id", jobID, "error", err)
		s.fail(ctx, jobID)
		return
	}

	publicURL, err := s.artifacts.Save(ctx, jobID+".png", data)
	if err != nil {
		s.log.Error("image store failed", "job_id", jobID, "error", err)
		s.fail(ctx, jobID)
		return
	}
	s.complete(ctx, jobID, publicURL)
}

func (s *GenerationService) complete(ctx context.Context, jobID, artifact string) {
	err := s.jobs.Complete(ctx, jobID, artifact)
	switch {
	case err == nil:
		s.log.Info("job completed", "job_id", jobID)
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound):
		s.log.Warn("job not completed", "job_id", jobID, "error", err)
	default:
		s.log.Error("complete job", "job_id", jobID, "error", err)
		s.fail(ctx, jobID)
	}
}

func (s *GenerationService) fail(ctx context.Context, jobID string) {
	if err := s.jobs.Fail(ctx, jobID); err != nil {
		s.log.Error("mark job failed", "job_id", jobID, "error", err)
		return
	}
	s.log.Info("job failed", "job_id", jobID)
}

// failOnPanic must be deferred directly by a task body. A task that panics
// still leaves its job in a terminal state.
func (s *GenerationService) failOnPanic(ctx context.Context, jobID string) {
	if rec := recover(); rec != nil {
		s.log.Error("generation task panicked", "job_id", jobID, "panic", rec)
		s.fail(ctx, jobID)
	}
}
