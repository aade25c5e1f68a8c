// Package web provides HTTP handlers and REST API endpoints for pipeline
// management and batch generation.
package web

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/jobs"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/pipeline"
	"github.com/loomhq/loom/pkg/registry"
)

type APIHandlers struct {
	validator *validator.Validate
	registry  *registry.Registry
	store     persistence.Persistence
	manager   *jobs.Manager
	executor  *pipeline.Executor
	bus       eventbus.EventPublisher
}

func NewAPIHandlers(
	validator *validator.Validate,
	reg *registry.Registry,
	store persistence.Persistence,
	manager *jobs.Manager,
	executor *pipeline.Executor,
	bus eventbus.EventPublisher,
) *APIHandlers {
	return &APIHandlers{
		validator: validator,
		registry:  reg,
		store:     store,
		manager:   manager,
		executor:  executor,
		bus:       bus,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()

	storeCheck := "ok"
	storeOk := true

	if err := h.store.HealthCheck(c.Context()); err != nil {
		storeCheck = err.Error()
		storeOk = false
	}

	status := "unhealthy"
	message := "Loom API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && storeOk {
		status = "healthy"
		message = "Loom API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry": registryCheck,
			"storage":  storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetBlocks returns the block catalog in registration order.
func (h *APIHandlers) GetBlocks(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"blocks": h.registry.Descriptors(),
	})
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	pipelines, err := h.store.Pipelines().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipelines": pipelines,
	})
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	pl, err := h.store.Pipelines().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(pl)
}

func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	var req SavePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def := req.Definition()

	if err := pipeline.Validate(def, h.registry); err != nil {
		if pErr, ok := pipeline.AsError(err); ok {
			return pipelineError(c, pErr)
		}

		return internalError(c, err)
	}

	pl := &models.Pipeline{Definition: def}

	if err := h.store.Pipelines().Save(c.Context(), pl); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pl)
}

func (h *APIHandlers) UpdatePipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	var req SavePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.store.Pipelines().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	def := req.Definition()

	if err := pipeline.Validate(def, h.registry); err != nil {
		if pErr, ok := pipeline.AsError(err); ok {
			return pipelineError(c, pErr)
		}

		return internalError(c, err)
	}

	existing.Definition = def

	if err := h.store.Pipelines().Save(c.Context(), existing); err != nil {
		return internalError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeletePipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	err := h.store.Pipelines().Delete(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecutePipeline runs a stored pipeline once, synchronously. The trace
// and correlation id are returned even for failed runs.
func (h *APIHandlers) ExecutePipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	pl, err := h.store.Pipelines().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	var req ExecuteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, trace, traceID, runErr := h.executor.Run(c.Context(), pl.Definition, req.InitialState)
	if runErr != nil {
		pErr, ok := pipeline.AsError(runErr)
		if !ok {
			return internalError(c, runErr)
		}

		status := fiber.StatusUnprocessableEntity
		if pErr.Kind == pipeline.KindBlockNotFound {
			status = fiber.StatusNotFound
		}

		detail := map[string]any{"kind": string(pErr.Kind)}
		for key, value := range pErr.Detail {
			detail[key] = value
		}

		return c.Status(status).JSON(fiber.Map{
			"error":    pErr.Error(),
			"detail":   detail,
			"trace":    trace,
			"trace_id": traceID,
		})
	}

	return c.JSON(ExecuteResponse{Result: result, Trace: trace, TraceID: traceID})
}

// Generate submits a batch generation job. At most one job runs at a
// time; a conflicting submission gets a 409 and mutates nothing.
func (h *APIHandlers) Generate(c fiber.Ctx) error {
	var req GenerateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pl, err := h.store.Pipelines().GetByID(c.Context(), req.PipelineID)
	if err != nil {
		return handleStoreError(c, err)
	}

	job, err := h.manager.Submit(c.Context(), pl, req.Seeds)
	if err != nil {
		var conflict *jobs.ConflictError
		if errors.As(err, &conflict) {
			return jobConflictError(c, conflict)
		}

		if pErr, ok := pipeline.AsError(err); ok {
			return pipelineError(c, pErr)
		}

		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(job)
}

// GetActiveJob returns the running job, or 404 when the system is idle.
func (h *APIHandlers) GetActiveJob(c fiber.Ctx) error {
	job := h.manager.Active()
	if job == nil {
		return notFound(c, "No job is currently running")
	}

	return c.JSON(job)
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	job, err := h.manager.Status(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(job)
}

func (h *APIHandlers) GetJobs(c fiber.Ctx) error {
	jobList, err := h.store.Jobs().List(c.Context(), c.Query("pipeline_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"jobs": jobList,
	})
}

func (h *APIHandlers) CancelJob(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Job ID is required")
	}

	if !h.manager.Cancel(c.Context(), id) {
		return notFound(c, "Job is not running")
	}

	return c.JSON(fiber.Map{
		"id":     id,
		"status": "cancelling",
	})
}

func (h *APIHandlers) GetRecords(c fiber.Ctx) error {
	opts, err := parseListRecordsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	records, err := h.store.Records().List(c.Context(), *opts)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"records": records,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func (h *APIHandlers) GetRecord(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	record, err := h.store.Records().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(record)
}

// ReviewRecord applies a human review: accept, reject, or edit the
// output. Editing without an explicit status marks the record edited.
func (h *APIHandlers) ReviewRecord(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	var req ReviewRecordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Status == nil && req.Output == nil && req.Metadata == nil {
		return badRequest(c, "A status, an edited output, or metadata is required")
	}

	record, err := h.store.Records().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	if req.Output != nil {
		record.Output = *req.Output
		record.Status = models.RecordStatusEdited
	}

	if req.Status != nil {
		record.Status = *req.Status
	}

	if req.Metadata != nil {
		record.Metadata = req.Metadata
	}

	if err := h.store.Records().Save(c.Context(), record); err != nil {
		return internalError(c, err)
	}

	h.publishReviewed(c, record)

	return c.JSON(record)
}

func (h *APIHandlers) DeleteRecord(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	err := h.store.Records().Delete(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DeleteAllRecords(c fiber.Ctx) error {
	deleted, err := h.store.Records().DeleteAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"deleted": deleted,
	})
}

// ExportRecords streams records as JSON Lines, one record per line.
// Filters match GetRecords.
func (h *APIHandlers) ExportRecords(c fiber.Ctx) error {
	opts, err := parseListRecordsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	records, err := h.store.Records().List(c.Context(), *opts)
	if err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="records.jsonl"`)

	writer := bufio.NewWriter(c.Response().BodyWriter())

	encoder := json.NewEncoder(writer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return internalError(c, err)
		}
	}

	return writer.Flush()
}

func (h *APIHandlers) publishReviewed(c fiber.Ctx, record *models.Record) {
	if h.bus == nil {
		return
	}

	event := events.RecordReviewed{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.RecordReviewedEvent,
			Timestamp:  time.Now().UTC(),
			PipelineID: record.PipelineID,
			JobID:      record.JobID,
		},
		RecordID: record.ID,
		Status:   record.Status,
	}

	// Review is already persisted; a publish failure is not surfaced to
	// the caller.
	_ = h.bus.Publish(c.Context(), string(events.RecordReviewedEvent), event)
}

func parseListRecordsOptions(c fiber.Ctx) (*persistence.ListRecordsOptions, error) {
	opts := &persistence.ListRecordsOptions{
		PipelineID: c.Query("pipeline_id"),
		JobID:      c.Query("job_id"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.RecordStatus(statusStr)
		opts.Status = &status
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	return opts, nil
}
