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

package operation

import (
	"context"
	"path"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/log"
	"github.com/walteh/drsholding/pkg/marc"
	"github.com/walteh/drsholding/pkg/remote"
	"github.com/walteh/drsholding/pkg/state"
	"github.com/walteh/drsholding/pkg/telemetry"
)

// EligibleLocation is the location code a holding must carry to be updated
const EligibleLocation = "NET"

// 🌐 APIWorkflow updates the holding in place through the catalog API
type APIWorkflow struct {
	opts        Options
	guard       *Guard
	transformer *marc.Transformer
}

var _ Workflow = (*APIWorkflow)(nil)

// 🏭 NewAPIWorkflow creates the API delivery workflow
func NewAPIWorkflow(opts Options) (*APIWorkflow, error) {
	opts.defaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Catalog == nil {
		return nil, errors.Errorf("catalog is required")
	}
	return &APIWorkflow{
		opts:        opts,
		guard:       NewGuard(opts.Store),
		transformer: marc.NewTransformer(opts.Files),
	}, nil
}

func (w *APIWorkflow) Mode() Mode { return ModeAPI }

// RunDir is the working directory of a run, relative to the data directory
func RunDir(externalID string) string {
	return path.Join("out", "proquest"+externalID+"-holdings")
}

// 🏃 Run executes the API delivery steps in order. Any step failure ends the run.
func (w *APIWorkflow) Run(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "drs_holding_api")
	defer span.End()
	span.SetAttributes(attribute.String("external_id", req.ExternalID))

	ctx = zerolog.Ctx(ctx).With().Str("external_id", req.ExternalID).Str("mode", string(ModeAPI)).Logger().WithContext(ctx)
	rep := w.opts.reporter(req)
	out := newOutcome(ModeAPI, req)

	if err := req.validate(); err != nil {
		rep.Fail(ctx, "invalid request", err)
		return out, out.fail(err)
	}

	rep.Start(ctx, "Update ETD Alma DRS Holding Record")

	if !req.Force && !req.IntegrationTest {
		done, err := w.guard.AlreadyProcessed(ctx, req.ExternalID, state.StatusAPISubmitted)
		if err != nil {
			rep.Fail(ctx, "checking processed status", err)
			return out, out.fail(err)
		}
		if done {
			rep.Skip(ctx, "holding for "+req.ExternalID+" already updated, use force to re-run")
			out.skip("already processed")
			return out, nil
		}
	}

	dir := RunDir(req.ExternalID)
	err := w.sync(ctx, rep, req, dir, out)
	w.cleanup(ctx, dir)
	if err != nil {
		return out, out.fail(err)
	}

	// only batches still waiting on their holding move; other batches keep their history
	n, err := w.opts.Store.UpdateStatus(ctx, state.Query{ExternalID: req.ExternalID, Status: state.StatusIngested}, state.StatusAPISubmitted)
	if err != nil {
		rep.Fail(ctx, "recording api submission", err)
		return out, out.fail(errors.Errorf("holding updated but status not recorded: %w", err))
	}
	if n == 0 {
		zerolog.Ctx(ctx).Warn().Msg("no status record matched the api submission update")
	}
	out.StatusRecorded = true

	out.complete()
	rep.Pass(ctx, req.ExternalID+" DRS holding was updated & sent to Alma")
	rep.Complete(ctx)
	return out, nil
}

func (w *APIWorkflow) sync(ctx context.Context, rep *log.Reporter, req Request, dir string, out *Outcome) error {
	// resolve_id
	zerolog.Ctx(ctx).Debug().Msg("resolving external id")
	found, err := w.opts.Catalog.ResolveExternalID(ctx, req.ExternalID)
	if err != nil {
		rep.Fail(ctx, "cannot resolve identifier", err)
		return errors.Errorf("resolving %s: %w", req.ExternalID, err)
	}
	snapshot(ctx, w.opts.Files, dir, "sru.xml", found.Raw)
	out.RecordID = found.RecordID
	rep.Pass(ctx, "resolved mms id "+found.RecordID)

	// select_holding
	zerolog.Ctx(ctx).Debug().Str("mms_id", found.RecordID).Msg("selecting holding")
	list, err := w.opts.Catalog.ListHoldings(ctx, found.RecordID)
	if err != nil {
		rep.Fail(ctx, "listing holdings", err)
		return errors.Errorf("listing holdings: %w", err)
	}
	snapshot(ctx, w.opts.Files, dir, "holdings.xml", list.Raw)
	selected, err := SelectHolding(list.Holdings)
	if err != nil {
		rep.Fail(ctx, "no eligible holding", err)
		return errors.Errorf("selecting holding of %s: %w", found.RecordID, err)
	}
	out.HoldingID = selected.HoldingID
	rep.Pass(ctx, "selected holding "+selected.HoldingID)

	// fetch_holding
	zerolog.Ctx(ctx).Debug().Str("holding_id", selected.HoldingID).Msg("fetching holding")
	holding, err := w.opts.Catalog.GetHolding(ctx, found.RecordID, selected.HoldingID)
	if err != nil {
		rep.Fail(ctx, "fetching holding", err)
		return errors.Errorf("fetching holding: %w", err)
	}
	snapshot(ctx, w.opts.Files, dir, "holding.xml", holding.Raw)
	if by, ok := holding.Document.HeaderField("last_modified_by"); ok {
		zerolog.Ctx(ctx).Debug().Str("last_modified_by", by).Msg("holding fetched")
	}

	// transform
	zerolog.Ctx(ctx).Debug().Msg("applying urn")
	updatedPath := path.Join(dir, "updated_holding.xml")
	if _, _, err := w.transformer.ApplyURNToFile(ctx, holding.Document, w.opts.URNPrefix, req.ObjectURN, updatedPath); err != nil {
		rep.Fail(ctx, "transforming holding", err)
		return errors.Errorf("transforming holding: %w", err)
	}
	rep.Pass(ctx, "wrote updated_holding for "+req.ExternalID)

	// upload
	zerolog.Ctx(ctx).Debug().Msg("uploading holding")
	body, err := w.opts.Files.ReadFile(ctx, updatedPath)
	if err != nil {
		rep.Fail(ctx, "reading updated holding", err)
		return errors.Errorf("reading %s: %w: %w", updatedPath, failure.ErrTransform, err)
	}
	if err := w.opts.Catalog.PutHolding(ctx, found.RecordID, selected.HoldingID, body); err != nil {
		rep.Fail(ctx, "uploading holding", err)
		return errors.Errorf("uploading holding: %w", err)
	}
	out.CatalogUpdated = true

	// confirm
	zerolog.Ctx(ctx).Debug().Msg("confirming update")
	if err := w.confirm(ctx, dir, req); err != nil {
		rep.Fail(ctx, "confirming holding update", err)
		return err
	}
	rep.Pass(ctx, "confirmed holding update")
	return nil
}

func (w *APIWorkflow) confirm(ctx context.Context, dir string, req Request) error {
	found, err := w.opts.Catalog.ResolveExternalID(ctx, req.ExternalID)
	if err != nil {
		// the update may already be live, so this stays a confirmation failure
		return errors.Errorf("confirming %s: %w: re-fetch failed: %s", req.ExternalID, failure.ErrConfirmationMismatch, err.Error())
	}
	snapshot(ctx, w.opts.Files, dir, "src_marc.xml", found.Raw)

	got, _ := found.Document.Subfield("852", "z")
	want := w.opts.URNPrefix + req.ObjectURN
	if !Confirmed(got, want) {
		return errors.Errorf("confirming %s: %w: 852$z is %q, want %q", req.ExternalID, failure.ErrConfirmationMismatch, got, want)
	}
	return nil
}

// cleanup removes the run directory; failures are logged only
func (w *APIWorkflow) cleanup(ctx context.Context, dir string) {
	if err := w.opts.Files.RemoveDir(ctx, dir); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("could not remove run directory")
	}
}

// 🎯 SelectHolding returns the first holding with a 3-character library code at the eligible location
func SelectHolding(holdings []remote.HoldingSummary) (*remote.HoldingSummary, error) {
	for i := range holdings {
		h := holdings[i]
		if len(h.Library) == 3 && h.Location == EligibleLocation {
			return &h, nil
		}
	}
	return nil, errors.Errorf("%w: no eligible holding among %d", failure.ErrNotFound, len(holdings))
}

// Confirmed is an exact comparison; whitespace differences count
func Confirmed(got, want string) bool {
	return got == want
}
