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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walteh/drsholding/pkg/state"
)

const (
	dropboxExternalID = "1234567890"
	dropboxBatch      = "proquest2023071720-993578-gsd"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

const metsTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<mets:mets xmlns:mets="http://www.loc.gov/METS/" xmlns:dim="http://www.dspace.org/xmlns/dspace/dim">
  <mets:dmdSec ID="dmd_1">
    <mets:mdWrap MDTYPE="OTHER" OTHERMDTYPE="DIM">
      <mets:xmlData>
        <dim:dim dspaceType="ITEM">
          <dim:field mdschema="dc" element="date" qualifier="created">2023-05</dim:field>
          <dim:field mdschema="dc" element="title">Naming Expeditor:` + "\x01" + ` Reimagining Institutional Naming System at Harvard</dim:field>
        </dim:dim>
      </mets:xmlData>
    </mets:mdWrap>
  </mets:dmdSec>
</mets:mets>
`

// writeManifest drops a manifest (with a stray control character) for batch under dataDir
func writeManifest(t *testing.T, dataDir, batch string) {
	t.Helper()
	p := filepath.Join(dataDir, "in", batch, "mets.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(metsTemplate), 0644))
}

// newSQLiteStore returns a temp store seeded with records
func newSQLiteStore(t *testing.T, ctx context.Context, records ...state.Record) *state.SQLiteStore {
	t.Helper()
	s, err := state.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err, "opening store should succeed")
	t.Cleanup(func() { _ = s.Close(ctx) })
	if len(records) > 0 {
		require.NoError(t, s.Insert(ctx, records...), "seeding should succeed")
	}
	return s
}

func statuses(t *testing.T, ctx context.Context, s state.Store, externalID string) []state.Status {
	t.Helper()
	records, err := s.Query(ctx, state.Query{ExternalID: externalID})
	require.NoError(t, err)
	var out []state.Status
	for _, r := range records {
		out = append(out, r.Status)
	}
	return out
}

// fakeWorkflow counts runs and returns a canned outcome
type fakeWorkflow struct {
	mode  Mode
	mu    sync.Mutex
	calls int
	block chan struct{}
	err   error
}

func (f *fakeWorkflow) Mode() Mode { return f.mode }

func (f *fakeWorkflow) Run(ctx context.Context, req Request) (*Outcome, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	out := newOutcome(f.mode, req)
	if f.err != nil {
		return out, out.fail(f.err)
	}
	out.complete()
	return out, nil
}

func (f *fakeWorkflow) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

