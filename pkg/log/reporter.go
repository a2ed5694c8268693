package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultJobCode identifies this worker to the job monitor
const DefaultJobCode = "drsholding2alma"

// 📣 Reporter sends named checkpoints and failures of one run to the job monitor.
// Checkpoints land as log events, as span events on the active span, and on the
// console when one is in the context.
type Reporter struct {
	jobCode string
	verbose bool
}

// NewReporter creates a reporter; Pass is silent unless verbose
func NewReporter(jobCode string, verbose bool) *Reporter {
	if jobCode == "" {
		jobCode = DefaultJobCode
	}
	return &Reporter{jobCode: jobCode, verbose: verbose}
}

func (r *Reporter) JobCode() string { return r.jobCode }

func (r *Reporter) Verbose() bool { return r.verbose }

func (r *Reporter) Start(ctx context.Context, msg string) {
	zerolog.Ctx(ctx).Info().Str("job", r.jobCode).Msg(msg)
	r.event(ctx, "start", msg)
}

// Pass records a step that went well
func (r *Reporter) Pass(ctx context.Context, msg string) {
	if !r.verbose {
		return
	}
	zerolog.Ctx(ctx).Info().Str("job", r.jobCode).Msg(msg)
	r.event(ctx, "pass", msg)
	if c, ok := ConsoleFromContext(ctx); ok {
		c.LogStep(ctx, StepOperation{Step: msg, Status: "pass"})
	}
}

// Skip records a run that ended without doing anything
func (r *Reporter) Skip(ctx context.Context, msg string) {
	zerolog.Ctx(ctx).Info().Str("job", r.jobCode).Msg(msg)
	r.event(ctx, "skip", msg)
	if c, ok := ConsoleFromContext(ctx); ok {
		c.LogStep(ctx, StepOperation{Step: msg, Status: "skip"})
	}
}

// Fail is always reported
func (r *Reporter) Fail(ctx context.Context, msg string, err error) {
	zerolog.Ctx(ctx).Error().Err(err).Str("job", r.jobCode).Msg(msg)

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, msg)
	}
	if c, ok := ConsoleFromContext(ctx); ok {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		c.LogStep(ctx, StepOperation{Step: msg, Status: "fail", Detail: detail})
	}
}

func (r *Reporter) Complete(ctx context.Context) {
	zerolog.Ctx(ctx).Info().Str("job", r.jobCode).Msg("job complete")
	r.event(ctx, "complete", "job complete")
}

func (r *Reporter) event(ctx context.Context, kind, msg string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(msg, trace.WithAttributes(
		attribute.String("job", r.jobCode),
		attribute.String("kind", kind),
	))
}
