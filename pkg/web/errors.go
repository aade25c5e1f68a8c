package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/loomhq/loom/pkg/jobs"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/pipeline"
)

// errorBody is the uniform error shape for domain errors: a human
// message plus a structured detail carrying the error kind and context.
type errorBody struct {
	Error  string         `json:"error"`
	Detail map[string]any `json:"detail"`
}

func domainError(c fiber.Ctx, status int, kind, message string, context map[string]any) error {
	detail := map[string]any{"kind": kind}
	for key, value := range context {
		detail[key] = value
	}

	return c.Status(status).JSON(errorBody{Error: message, Detail: detail})
}

// pipelineError maps the pipeline error taxonomy onto HTTP statuses:
// structural problems are the caller's to fix (400/404), run failures
// are unprocessable submissions (422).
func pipelineError(c fiber.Ctx, err *pipeline.Error) error {
	status := fiber.StatusUnprocessableEntity

	switch err.Kind {
	case pipeline.KindValidation:
		status = fiber.StatusBadRequest
	case pipeline.KindBlockNotFound:
		status = fiber.StatusNotFound
	}

	return domainError(c, status, string(err.Kind), err.Error(), err.Detail)
}

func jobConflictError(c fiber.Ctx, err *jobs.ConflictError) error {
	return domainError(c, fiber.StatusConflict, "JobConflictError", err.Error(), map[string]any{
		"active_job_id": err.ActiveJobID,
	})
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleStoreError maps persistence errors with not-found awareness.
func handleStoreError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsPipelineNotFound(err):
		return notFound(c, "Pipeline not found")
	case persistence.IsRecordNotFound(err):
		return notFound(c, "Record not found")
	case persistence.IsJobNotFound(err):
		return notFound(c, "Job not found")
	default:
		return internalError(c, err)
	}
}
