// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package task turns broker messages into holding syncs.
package task

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/walteh/drsholding/pkg/operation"
	"github.com/walteh/drsholding/pkg/queue"
	"github.com/walteh/drsholding/pkg/telemetry"
)

const (
	// AddHoldings is the task this service consumes
	AddHoldings = "etd-alma-drs-holding-service.tasks.add_holdings"
	// Continuation is the task published for the next pipeline stage
	Continuation = "tasks.tasks.do_task"

	Greeting = "from etd-alma-drs-holding-service"
)

// Action is what the handler did with a message
type Action string

const (
	ActionDispatched Action = "dispatched"
	ActionContinued  Action = "continued"
	ActionIgnored    Action = "ignored"
)

// Dispatcher routes a request to a workflow and runs it
type Dispatcher interface {
	Dispatch(ctx context.Context, req operation.Request) (*operation.Outcome, error)
}

// Publisher sends a task to a queue
type Publisher interface {
	Publish(ctx context.Context, queue, task string, args ...any) error
}

// ContinuationMessage lets the pipeline move on when no holding work is done
type ContinuationMessage struct {
	Hello        string       `json:"hello"`
	FeatureFlags FeatureFlags `json:"feature_flags,omitempty"`
	PQID         string       `json:"pqid,omitempty"`
	Traceparent  string       `json:"traceparent,omitempty"`
}

// 📋 Result reports how a message was handled
type Result struct {
	Action       Action
	Outcome      *operation.Outcome
	Continuation *ContinuationMessage
	Published    bool
}

// 🔧 Options configures a Handler
type Options struct {
	Dispatcher     Dispatcher
	Publisher      Publisher
	PublishQueue   string
	RoutingEnabled bool
}

// 🎯 Handler is the add_holdings entrypoint
type Handler struct {
	opts Options
}

func NewHandler(opts Options) (*Handler, error) {
	if opts.RoutingEnabled && opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required when routing is enabled")
	}
	return &Handler{opts: opts}, nil
}

// HandleMessage adapts AddHoldings to the queue consumer
func (h *Handler) HandleMessage(ctx context.Context, msg *queue.Message) error {
	var raw json.RawMessage
	if err := msg.Arg(0, &raw); err != nil {
		return err
	}
	p, err := ParsePayload(raw)
	if err != nil {
		return err
	}
	_, err = h.AddHoldings(ctx, p)
	return err
}

// 🏃 AddHoldings runs a sync when the holding flags are on and routing is enabled,
// otherwise it hands the message on to the next stage
func (h *Handler) AddHoldings(ctx context.Context, p *Payload) (*Result, error) {
	ctx = telemetry.Extract(ctx, p.Traceparent)
	ctx, span := telemetry.Tracer().Start(ctx, "add_holdings")
	defer span.End()

	logger := zerolog.Ctx(ctx).With().Str("pqid", p.PQID).Logger()
	ctx = logger.WithContext(ctx)

	if body, err := json.Marshal(p); err == nil {
		logger.Debug().RawJSON("payload", body).Msg("message")
		span.AddEvent(string(body))
	}

	switch {
	case p.holdingEnabled() && h.opts.RoutingEnabled:
		return h.dispatch(ctx, span, p)
	case p.FeatureFlags.On(FlagDRSHolding) && !p.FeatureFlags.On(FlagSendToDRS):
		msg := FlagSendToDRS + " must be on for the alma holding to be created"
		logger.Debug().Msg(msg)
		span.AddEvent(msg)
		return &Result{Action: ActionIgnored}, nil
	case p.holdingEnabled():
		logger.Debug().Msg("holding flags are on but routing is disabled")
		span.AddEvent("routing disabled")
	}
	return h.continuation(ctx, p)
}

func (h *Handler) dispatch(ctx context.Context, span trace.Span, p *Payload) (*Result, error) {
	span.AddEvent("feature is on, creating drs holding record in alma")

	out, err := h.opts.Dispatcher.Dispatch(ctx, p.Request())
	res := &Result{Action: ActionDispatched, Outcome: out}
	if out != nil {
		span.SetAttributes(
			attribute.String("mode", string(out.Mode)),
			attribute.String("state", string(out.State)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, errors.Errorf("add_holdings %s: %w", p.PQID, err)
	}
	return res, nil
}

func (h *Handler) continuation(ctx context.Context, p *Payload) (*Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "invoke_hello_world_drs_holding")
	defer span.End()

	msg := &ContinuationMessage{Hello: Greeting, PQID: p.PQID}
	if p.FeatureFlags != nil {
		msg.FeatureFlags = p.FeatureFlags
		span.AddEvent("feature flags found")
	}
	res := &Result{Action: ActionContinued, Continuation: msg}

	if p.UnitTest() {
		return res, nil
	}
	if h.opts.Publisher == nil {
		return res, errors.New("publisher is required to continue the pipeline")
	}

	msg.Traceparent = telemetry.Inject(ctx)
	span.AddEvent("to next queue")
	if err := h.opts.Publisher.Publish(ctx, h.opts.PublishQueue, Continuation, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, errors.Errorf("publishing continuation for %s: %w", p.PQID, err)
	}
	res.Published = true
	return res, nil
}
