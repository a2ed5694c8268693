// Package operation runs the holding synchronization workflows
package operation

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/log"
	"github.com/walteh/drsholding/pkg/marc"
	"github.com/walteh/drsholding/pkg/remote"
	"github.com/walteh/drsholding/pkg/state"
	"github.com/walteh/drsholding/pkg/workdir"
)

// DefaultURNPrefix precedes the object URN in 852 $z
const DefaultURNPrefix = "Preservation master, "

// Mode names a delivery path
type Mode string

const (
	ModeAPI     Mode = "api"
	ModeDropbox Mode = "dropbox"
)

// 📨 Request is one sync, fixed for the life of the run
type Request struct {
	ExternalID string
	ObjectURN  string
	// Force skips the already-processed check
	Force bool
	// Verbose makes the reporter emit passing checkpoints
	Verbose bool
	// IntegrationTest skips the already-processed check and marks output as test output
	IntegrationTest bool
}

func (r Request) validate() error {
	if strings.TrimSpace(r.ExternalID) == "" {
		return errors.Errorf("%w: external id is required", failure.ErrValidation)
	}
	if strings.TrimSpace(r.ObjectURN) == "" {
		return errors.Errorf("%w: object urn is required", failure.ErrValidation)
	}
	return nil
}

// RunState is where a run ended
type RunState string

const (
	StateCompleted RunState = "completed"
	StateSkipped   RunState = "skipped"
	StateFailed    RunState = "failed"
)

// 📋 Outcome reports what a run did. The three flags are independent: a catalog
// update can succeed while the status bookkeeping after it fails.
type Outcome struct {
	Mode       Mode
	ExternalID string
	State      RunState
	Reason     string
	Kind       failure.Kind

	CatalogUpdated bool
	Transferred    bool
	StatusRecorded bool

	RecordID       string
	HoldingID      string
	Batch          string
	RecordFile     string
	CollectionFile string
}

func newOutcome(mode Mode, req Request) *Outcome {
	return &Outcome{Mode: mode, ExternalID: req.ExternalID}
}

// fail marks the outcome failed and returns err for chaining
func (o *Outcome) fail(err error) error {
	o.State = StateFailed
	o.Kind = failure.KindOf(err)
	o.Reason = err.Error()
	return err
}

func (o *Outcome) skip(reason string) {
	o.State = StateSkipped
	o.Reason = reason
}

func (o *Outcome) complete() {
	o.State = StateCompleted
	o.Reason = ""
	o.Kind = failure.KindNone
}

// 🎯 Workflow is one delivery path
type Workflow interface {
	Mode() Mode
	Run(ctx context.Context, req Request) (*Outcome, error)
}

// DropboxOpener connects to the dropbox when a collection is ready to send
type DropboxOpener func(ctx context.Context) (remote.Dropbox, error)

// 🔧 Options contains the collaborators shared by the workflows
type Options struct {
	// Catalog is the library catalog client
	Catalog remote.Catalog
	// Store holds processing status records
	Store state.Store
	// Files is rooted at the data directory
	Files *workdir.Manager
	// OpenDropbox is required by the dropbox workflow only
	OpenDropbox DropboxOpener
	// Template is the dropbox record template
	Template *marc.Document

	JobCode   string
	URNPrefix string
	// Instance names the deployment; "prod" is left out of collection names
	Instance string
	// TestBatch is the batch whose school is used under integration test
	TestBatch string
	// Now defaults to time.Now
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.URNPrefix == "" {
		o.URNPrefix = DefaultURNPrefix
	}
	if o.JobCode == "" {
		o.JobCode = log.DefaultJobCode
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func (o Options) validate() error {
	if o.Store == nil {
		return errors.Errorf("store is required")
	}
	if o.Files == nil {
		return errors.Errorf("files is required")
	}
	return nil
}

func (o Options) reporter(req Request) *log.Reporter {
	return log.NewReporter(o.JobCode, req.Verbose)
}

// snapshot keeps an intermediate response next to the run's output. Failures only warn.
func snapshot(ctx context.Context, files *workdir.Manager, dir, name string, content []byte) {
	if len(content) == 0 {
		return
	}
	p := path.Join(dir, name)
	if err := files.WriteFileAtomic(ctx, p, content); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", p).Msg("could not write snapshot")
	}
}
