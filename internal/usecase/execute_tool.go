package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

const instrumentationName = "github.com/ticketbridge/ticketbridge/internal/usecase"

// ExecuteToolUseCase resolves a named tool, validates the raw arguments
// against its schema, invokes the handler, and wraps the outcome in the
// uniform invocation envelope. Per-call failures are never returned as
// faults; every outcome is an envelope.
type ExecuteToolUseCase struct {
	registry ToolRegistry
	logger   *slog.Logger
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewExecuteToolUseCase creates a new ExecuteToolUseCase.
func NewExecuteToolUseCase(registry ToolRegistry, logger *slog.Logger) *ExecuteToolUseCase {
	meter := otel.Meter(instrumentationName)
	calls, err := meter.Int64Counter("ticketbridge.tool.invocations",
		metric.WithDescription("Number of tool invocations, by tool and outcome."))
	if err != nil {
		logger.Warn("Failed to create invocation counter.", slog.Any("error", err))
	}
	duration, err := meter.Float64Histogram("ticketbridge.tool.duration",
		metric.WithDescription("Tool invocation duration."),
		metric.WithUnit("ms"))
	if err != nil {
		logger.Warn("Failed to create duration histogram.", slog.Any("error", err))
	}
	return &ExecuteToolUseCase{
		registry: registry,
		logger:   logger.With("usecase", "ExecuteTool"),
		tracer:   otel.Tracer(instrumentationName),
		calls:    calls,
		duration: duration,
	}
}

// Execute runs one tool invocation end to end and always returns an envelope.
func (uc *ExecuteToolUseCase) Execute(ctx context.Context, toolName string, rawArgs map[string]any) domain.InvocationResult {
	log := uc.logger.With(slog.String("tool_name", toolName))
	start := time.Now()

	ctx, span := uc.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("tool.name", toolName)))
	defer span.End()

	res := uc.execute(ctx, log, toolName, rawArgs)

	span.SetAttributes(attribute.Bool("tool.success", res.Success))
	if uc.calls != nil {
		outcome := "success"
		if !res.Success {
			outcome = res.Error.Type
		}
		uc.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", toolName),
			attribute.String("outcome", outcome)))
	}
	if uc.duration != nil {
		uc.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0,
			metric.WithAttributes(attribute.String("tool", toolName)))
	}
	return res
}

func (uc *ExecuteToolUseCase) execute(ctx context.Context, log *slog.Logger, toolName string, rawArgs map[string]any) (res domain.InvocationResult) {
	// A handler must never take the server down; panics become envelopes too.
	defer func() {
		if r := recover(); r != nil {
			log.Error("Tool handler panicked.", slog.Any("panic", r))
			res = domain.FailTool(domain.ErrKindHandler,
				fmt.Sprintf("tool handler panicked: %v", r), toolName)
		}
	}()

	tool, err := uc.registry.Get(toolName)
	if err != nil {
		log.Warn("Tool not registered.", slog.Any("error", err))
		return domain.FailTool(domain.ErrKindUnknownTool,
			fmt.Sprintf("tool %q is not registered", toolName), toolName)
	}

	args, verr := validateArguments(tool, rawArgs)
	if verr != nil {
		log.Warn("Argument validation failed.",
			slog.String("field", verr.Field),
			slog.String("reason", verr.Message))
		res := domain.FailField(verr.Message, verr.Field)
		res.Error.Tool = toolName
		return res
	}

	log.Debug("Invoking tool handler.", slog.Int("arg_count", len(args)))
	payload, err := tool.Handler(ctx, args)
	if err != nil {
		kind := domain.ErrKindHandler
		msg := err.Error()
		var herr *domain.HandlerError
		if asHandlerError(err, &herr) {
			kind = herr.Kind
			msg = herr.Message
		}
		log.Warn("Tool handler failed.", slog.String("kind", kind), slog.Any("error", err))
		return domain.FailTool(kind, msg, toolName)
	}

	log.Info("Tool invocation succeeded.")
	return domain.Succeed(payload)
}
