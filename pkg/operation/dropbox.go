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
	"fmt"
	"maps"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/manifest"
	"github.com/walteh/drsholding/pkg/marc"
	"github.com/walteh/drsholding/pkg/school"
	"github.com/walteh/drsholding/pkg/state"
	"github.com/walteh/drsholding/pkg/telemetry"
)

// RemoteDir is where the catalog picks up dropbox files
const RemoteDir = "/incoming/"

// 📦 DropboxWorkflow renders a holding from the template and drops it for import
type DropboxWorkflow struct {
	opts        Options
	guard       *Guard
	transformer *marc.Transformer
}

var _ Workflow = (*DropboxWorkflow)(nil)

// 🏭 NewDropboxWorkflow creates the dropbox delivery workflow
func NewDropboxWorkflow(opts Options) (*DropboxWorkflow, error) {
	opts.defaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.OpenDropbox == nil {
		return nil, errors.Errorf("dropbox opener is required")
	}
	if opts.Template == nil {
		return nil, errors.Errorf("template is required")
	}
	return &DropboxWorkflow{
		opts:        opts,
		guard:       NewGuard(opts.Store),
		transformer: marc.NewTransformer(opts.Files),
	}, nil
}

func (w *DropboxWorkflow) Mode() Mode { return ModeDropbox }

// 🏃 Run executes the dropbox delivery steps in order. The collection file is
// removed on every path once written; the status changes only after a transfer.
func (w *DropboxWorkflow) Run(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "drs_holding_dropbox")
	defer span.End()
	span.SetAttributes(attribute.String("external_id", req.ExternalID))

	ctx = zerolog.Ctx(ctx).With().Str("external_id", req.ExternalID).Str("mode", string(ModeDropbox)).Logger().WithContext(ctx)
	rep := w.opts.reporter(req)
	out := newOutcome(ModeDropbox, req)

	if err := req.validate(); err != nil {
		rep.Fail(ctx, "invalid request", err)
		return out, out.fail(err)
	}

	rep.Start(ctx, "Create ETD Alma DRS Holding Record")

	if !req.Force && !req.IntegrationTest {
		done, err := w.guard.AlreadyProcessed(ctx, req.ExternalID, state.StatusDropboxSubmitted)
		if err != nil {
			rep.Fail(ctx, "checking processed status", err)
			return out, out.fail(err)
		}
		if done {
			rep.Skip(ctx, "holding record "+req.ExternalID+" has already been created, use force to re-run")
			out.skip("already processed")
			return out, nil
		}
	}

	record, err := w.lookupBatch(ctx, req.ExternalID)
	if err != nil {
		rep.Fail(ctx, "looking up batch", err)
		return out, out.fail(err)
	}
	out.Batch = record.DirectoryID

	schoolName := record.School
	if req.IntegrationTest {
		if s, ok := school.FromBatch(w.opts.TestBatch); ok {
			schoolName = s
		}
	}
	ctx = zerolog.Ctx(ctx).With().Str("batch", record.DirectoryID).Str("school", schoolName).Logger().WithContext(ctx)
	rep.Pass(ctx, "holding record creation for "+req.ExternalID+" for school "+schoolName+" is beginning")

	values, err := w.collectValues(ctx, req, record.DirectoryID, schoolName)
	if err != nil {
		rep.Fail(ctx, "reading manifest for "+record.DirectoryID, err)
		return out, out.fail(err)
	}

	// render_template
	out.RecordFile = RecordFile(record.DirectoryID)
	rendered, err := w.transformer.RenderToFile(ctx, w.opts.Template, values, out.RecordFile)
	if err != nil {
		rep.Fail(ctx, "writing holding record for "+record.DirectoryID, err)
		return out, out.fail(errors.Errorf("rendering record: %w", err))
	}
	rep.Pass(ctx, "wrote "+out.RecordFile)

	// append_to_collection
	recordBytes, err := rendered.RecordBytes()
	if err != nil {
		return out, out.fail(errors.Errorf("serializing record: %w: %w", failure.ErrTransform, err))
	}
	collection := &marc.Collection{}
	collection.Add(recordBytes)

	out.CollectionFile = path.Join("out", CollectionName(w.opts.Instance, req.IntegrationTest, w.opts.Now()))
	if err := w.opts.Files.WriteFileAtomic(ctx, out.CollectionFile, collection.Bytes()); err != nil {
		rep.Fail(ctx, "writing collection file", err)
		return out, out.fail(errors.Errorf("writing collection %s: %w", out.CollectionFile, err))
	}
	defer w.removeCollection(ctx, out.CollectionFile)

	// transfer
	target, err := w.transfer(ctx, out.CollectionFile)
	if err != nil {
		rep.Fail(ctx, "sending collection to dropbox", err)
		return out, out.fail(err)
	}
	out.Transferred = true
	out.CatalogUpdated = true
	rep.Pass(ctx, out.CollectionFile+" was sent to "+target)

	// update_status
	n, err := w.opts.Store.UpdateStatus(ctx, state.Query{ExternalID: req.ExternalID, DirectoryID: record.DirectoryID}, state.StatusDropboxSubmitted)
	if err != nil {
		rep.Fail(ctx, "recording dropbox submission", err)
		return out, out.fail(errors.Errorf("collection sent but status not recorded: %w", err))
	}
	if n == 0 {
		zerolog.Ctx(ctx).Warn().Msg("no status record matched the dropbox submission update")
	}
	out.StatusRecorded = true

	out.complete()
	rep.Pass(ctx, req.ExternalID+" DRS holding was sent to Alma")
	rep.Complete(ctx)
	return out, nil
}

// lookupBatch returns the ingested record for externalID; the first wins when there are several
func (w *DropboxWorkflow) lookupBatch(ctx context.Context, externalID string) (*state.Record, error) {
	records, err := w.opts.Store.Query(ctx, state.Query{ExternalID: externalID, Status: state.StatusIngested})
	if err != nil {
		return nil, errors.Errorf("looking up batch for %s: %w", externalID, err)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%w: unable to find ingested record for %s", failure.ErrNotFound, externalID)
	}
	if len(records) > 1 {
		zerolog.Ctx(ctx).Warn().Int("count", len(records)).Msg("several ingested records found, using the first")
	}
	return &records[0], nil
}

func (w *DropboxWorkflow) collectValues(ctx context.Context, req Request, batch, schoolName string) (marc.Values, error) {
	// locate_manifest
	manifestPath, err := manifest.Locate(ctx, w.opts.Files.BaseDir(), batch)
	if err != nil {
		return nil, err
	}

	// sanitize_manifest
	if err := manifest.Sanitize(ctx, w.opts.Files, manifestPath); err != nil {
		return nil, err
	}

	// extract_metadata
	md, err := manifest.Extract(manifestPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(schoolName) == "" {
		return nil, errors.Errorf("%w: failed to find school for %s", failure.ErrValidation, batch)
	}
	libCode, err := school.LibraryCode(schoolName)
	if err != nil {
		return nil, err
	}

	now := w.opts.Now()
	values := marc.HeaderValues(w.opts.JobCode, now, md.DateCreated)
	maps.Copy(values, marc.Values{
		marc.KeyRunDate:         now.Format("060102"),
		marc.KeyDateCreated:     md.DateCreated,
		marc.KeyExternalID:      req.ExternalID,
		marc.KeyTitle:           md.Title,
		marc.KeyTitleIndicator2: md.TitleIndicator2,
		marc.KeyObjectURN:       req.ObjectURN,
		marc.KeyLibraryCode:     libCode,
	})
	return values, nil
}

func (w *DropboxWorkflow) transfer(ctx context.Context, collectionFile string) (string, error) {
	box, err := w.opts.OpenDropbox(ctx)
	if err != nil {
		return "", errors.Errorf("opening dropbox: %w", asTransport(err))
	}
	defer func() {
		if err := box.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("closing dropbox")
		}
	}()

	remotePath := RemoteDir + path.Base(collectionFile)
	if err := box.Put(ctx, w.opts.Files.Path(collectionFile), remotePath); err != nil {
		return "", errors.Errorf("putting %s: %w", remotePath, asTransport(err))
	}
	return box.Target() + remotePath, nil
}

func (w *DropboxWorkflow) removeCollection(ctx context.Context, collectionFile string) {
	if err := w.opts.Files.DeleteFile(ctx, collectionFile); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", collectionFile).Msg("could not remove collection file")
	}
}

// asTransport classifies an unclassified transfer error as a transport failure
func asTransport(err error) error {
	if failure.KindOf(err) != failure.KindUnknown {
		return err
	}
	return errors.Errorf("%w: %s", failure.ErrTransport, err.Error())
}

// RecordFile is the per-batch record path, relative to the data directory
func RecordFile(batch string) string {
	return path.Join("out", batch, strings.ReplaceAll(batch, "proquest", "almadrsholding")+".xml")
}

// CollectionName names the file sent to the dropbox, e.g. AlmaDRSDarkDev_202401020304.xml
func CollectionName(instance string, integrationTest bool, now time.Time) string {
	if strings.EqualFold(instance, "prod") {
		instance = ""
	}
	if instance != "" {
		instance = strings.ToUpper(instance[:1]) + strings.ToLower(instance[1:])
	}
	prefix := "AlmaDRSDark"
	if integrationTest {
		prefix += "Test"
	}
	return fmt.Sprintf("%s%s_%s.xml", prefix, instance, now.Format("200601021504"))
}
