package operation

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/state"
)

// 🔀 Router picks the delivery path from the record's pre-ingest flag
type Router struct {
	store   state.Store
	api     Workflow
	dropbox Workflow
	runner  *Runner
}

// RouterOptions wires the router
type RouterOptions struct {
	Store   state.Store
	API     Workflow
	Dropbox Workflow
	// Runner defaults to a synchronous runner without locking
	Runner *Runner
}

func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Store == nil {
		return nil, errors.Errorf("store is required")
	}
	if opts.API == nil {
		return nil, errors.Errorf("api workflow is required")
	}
	if opts.Dropbox == nil {
		return nil, errors.Errorf("dropbox workflow is required")
	}
	if opts.Runner == nil {
		opts.Runner = NewRunner(nil, 0, false)
	}
	return &Router{store: opts.Store, api: opts.API, dropbox: opts.Dropbox, runner: opts.Runner}, nil
}

// Route returns the workflow for req without running it
func (r *Router) Route(ctx context.Context, req Request) (Workflow, error) {
	if err := req.validate(); err != nil {
		return nil, errors.Errorf("routing: %w", err)
	}

	records, err := r.store.Query(ctx, state.Query{ExternalID: req.ExternalID, Status: state.StatusIngested})
	if err != nil {
		return nil, errors.Errorf("routing %s: %w", req.ExternalID, err)
	}

	logger := zerolog.Ctx(ctx).With().Str("external_id", req.ExternalID).Int("count", len(records)).Logger()
	switch {
	case len(records) == 0:
		logger.Error().Msg("no ingested record to route")
		return nil, errors.Errorf("routing %s: %w: no ingested record", req.ExternalID, failure.ErrNotFound)
	case len(records) > 1:
		logger.Warn().Msg("several ingested records, routing on the first")
	}

	if records[0].InDash {
		logger.Debug().Msg("routing to dropbox delivery")
		return r.dropbox, nil
	}
	logger.Debug().Msg("routing to api delivery")
	return r.api, nil
}

// 🚦 Dispatch routes req and runs the chosen workflow
func (r *Router) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	wf, err := r.Route(ctx, req)
	if err != nil {
		out := &Outcome{ExternalID: req.ExternalID}
		return out, out.fail(err)
	}
	return r.runner.Run(ctx, wf, req)
}

// Workflow returns the workflow for an explicit mode
func (r *Router) Workflow(mode Mode) (Workflow, error) {
	switch mode {
	case ModeAPI:
		return r.api, nil
	case ModeDropbox:
		return r.dropbox, nil
	}
	return nil, errors.Errorf("unknown mode %q, options: %s, %s", mode, ModeAPI, ModeDropbox)
}

// Run executes an explicitly chosen workflow through the router's runner
func (r *Router) Run(ctx context.Context, mode Mode, req Request) (*Outcome, error) {
	wf, err := r.Workflow(mode)
	if err != nil {
		return nil, err
	}
	return r.runner.Run(ctx, wf, req)
}
