package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/otelhelper"
	"github.com/loomhq/loom/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// StepObserver is notified before each block executes. The job
// orchestrator uses it to expose the currently executing block in the
// job status.
type StepObserver func(index int, blockType string)

// Executor runs one pipeline definition against one initial state. It is
// stateless across runs: every Run call is independent.
type Executor struct {
	registry *registry.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewExecutor(reg *registry.Registry, logger *slog.Logger) *Executor {
	return &Executor{
		registry: reg,
		logger:   logger,
		tracer:   noop.NewTracerProvider().Tracer("pipeline"),
	}
}

// WithTracer returns a copy of the executor that emits OpenTelemetry
// spans per run and per block.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	clone := *e
	clone.tracer = tracer

	return &clone
}

// Run executes the definition's blocks in order against a copy of
// initial. It returns the final accumulated state, the trace, and the
// run's correlation id, even for failed runs, so failures stay
// diagnosable. Execution stops at the first failing block; the engine
// never retries.
func (e *Executor) Run(
	ctx context.Context,
	def models.PipelineDefinition,
	initial map[string]any,
	observers ...StepObserver,
) (map[string]any, models.Trace, string, error) {
	traceID := uuid.New().String()

	logger := e.logger.With(
		"module", "pipeline_executor",
		"pipeline", def.Name,
		"trace_id", traceID,
	)
	logger.InfoContext(ctx, "Starting pipeline run", "blocks", len(def.Blocks))

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "pipeline.run",
		attribute.String("loom.pipeline.name", def.Name),
		attribute.String("loom.trace.id", traceID),
	)
	defer span.End()

	state := models.CopyState(initial)
	trace := make(models.Trace, 0, len(def.Blocks))

	for index, blockDef := range def.Blocks {
		stepLogger := logger.With("block_index", index, "block_type", blockDef.Type)

		for _, observe := range observers {
			observe(index, blockDef.Type)
		}

		record, err := e.runBlock(ctx, index, blockDef, state, stepLogger)
		trace = append(trace, record)

		if err != nil {
			otelhelper.SetError(span, err, attribute.String("loom.block.type", blockDef.Type))

			return state, trace, traceID, err
		}

		for key, value := range record.Output {
			// Last writer wins on repeated output keys.
			state[key] = value
		}

		// Re-snapshot after the merge so the trace shows the state the
		// next block will see.
		trace[index].AccumulatedState = models.CopyState(state)
	}

	logger.InfoContext(ctx, "Pipeline run completed", "state_keys", len(state))

	return state, trace, traceID, nil
}

// runBlock attempts one block and always returns a StepRecord: failed
// input checks and block errors still produce a trace entry carrying the
// error.
func (e *Executor) runBlock(
	ctx context.Context,
	index int,
	blockDef models.BlockDefinition,
	state map[string]any,
	logger *slog.Logger,
) (models.StepRecord, error) {
	input := models.CopyState(state)
	record := models.StepRecord{
		BlockType:        blockDef.Type,
		Input:            input,
		AccumulatedState: models.CopyState(state),
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "pipeline.block",
		attribute.String("loom.block.type", blockDef.Type),
		attribute.Int("loom.block.index", index),
	)
	defer span.End()

	factory, err := e.registry.Resolve(blockDef.Type)
	if err != nil {
		var pErr *Error

		var notFound *registry.NotFoundError
		if errors.As(err, &notFound) {
			pErr = newBlockNotFoundError(index, notFound)
		} else {
			pErr = newBlockExecutionError(index, blockDef.Type, err, input)
		}

		record.Error = pErr.Error()
		logger.ErrorContext(ctx, "Failed to resolve block type", "error", err)

		return record, pErr
	}

	if missing := factory.Inputs().MissingFrom(state); len(missing) > 0 {
		pErr := newMissingInputError(index, blockDef.Type, missing, input)
		record.Error = pErr.Error()
		logger.WarnContext(ctx, "Block input contract unmet", "missing_keys", missing)

		return record, pErr
	}

	block, err := factory.Create(blockDef.Config)
	if err != nil {
		pErr := newBlockExecutionError(index, blockDef.Type, err, input)
		record.Error = pErr.Error()
		logger.ErrorContext(ctx, "Failed to construct block", "error", err)

		return record, pErr
	}

	logger.InfoContext(ctx, "Executing block")

	start := time.Now()
	output, err := block.Execute(ctx, models.CopyState(state))
	record.ExecutionTime = time.Since(start).Seconds()

	if err != nil {
		pErr := newBlockExecutionError(index, blockDef.Type, err, input)
		record.Error = pErr.Error()
		logger.ErrorContext(ctx, "Block execution failed", "error", err)

		return record, pErr
	}

	if extra, missing := diffOutputs(output, factory.Outputs()); len(extra) > 0 || len(missing) > 0 {
		pErr := newOutputValidationError(index, blockDef.Type, extra, missing)
		record.Error = pErr.Error()
		logger.ErrorContext(ctx, "Block output contract unmet", "extra_keys", extra, "missing_keys", missing)

		return record, pErr
	}

	record.Output = models.CopyState(output)
	logger.InfoContext(ctx, "Block executed successfully", "duration_seconds", record.ExecutionTime)

	return record, nil
}

// diffOutputs compares returned keys against the declared contract. Both
// a superset and a subset are violations.
func diffOutputs(output map[string]any, declared []string) (extra, missing []string) {
	declaredSet := make(map[string]bool, len(declared))
	for _, key := range declared {
		declaredSet[key] = true
	}

	for key := range output {
		if !declaredSet[key] {
			extra = append(extra, key)
		}
	}

	sort.Strings(extra)

	for _, key := range declared {
		if _, ok := output[key]; !ok {
			missing = append(missing, key)
		}
	}

	return extra, missing
}
