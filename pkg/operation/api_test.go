package operation

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/marc"
	"github.com/walteh/drsholding/pkg/provider/alma"
	"github.com/walteh/drsholding/pkg/remote"
	"github.com/walteh/drsholding/pkg/state"
	"github.com/walteh/drsholding/pkg/testutils"
	"github.com/walteh/drsholding/pkg/workdir"
)

func newAlmaClient(t *testing.T, srv *testutils.AlmaServer) *alma.Client {
	t.Helper()
	client, err := alma.New(alma.Options{
		APIBase: srv.URL,
		APIKey:  testutils.FixtureAPIKey,
		SRUBase: srv.SRUBase(),
	})
	require.NoError(t, err, "creating alma client should succeed")
	return client
}

func newAPIWorkflow(t *testing.T, catalog remote.Catalog, store state.Store) (*APIWorkflow, *workdir.Manager) {
	t.Helper()
	files := workdir.New(t.TempDir())
	wf, err := NewAPIWorkflow(Options{
		Catalog: catalog,
		Store:   store,
		Files:   files,
		Now:     clock,
	})
	require.NoError(t, err, "creating workflow should succeed")
	return wf, files
}

func apiRequest() Request {
	return Request{ExternalID: testutils.FixtureExternalID, ObjectURN: testutils.FixtureURN}
}

func TestNewAPIWorkflow_Validation(t *testing.T) {
	files := workdir.New(t.TempDir())
	store := &testutils.MockStore{}
	catalog := &testutils.MockCatalog{}

	tests := []struct {
		name string
		opts Options
		msg  string
	}{
		{name: "missing_store", opts: Options{Catalog: catalog, Files: files}, msg: "store is required"},
		{name: "missing_files", opts: Options{Catalog: catalog, Store: store}, msg: "files is required"},
		{name: "missing_catalog", opts: Options{Store: store, Files: files}, msg: "catalog is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAPIWorkflow(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSelectHolding(t *testing.T) {
	tests := []struct {
		name     string
		holdings []remote.HoldingSummary
		want     string
		wantErr  bool
	}{
		{
			name: "first_eligible_wins",
			holdings: []remote.HoldingSummary{
				{HoldingID: "1", Library: "DES", Location: "NET"},
				{HoldingID: "2", Library: "HUA", Location: "NET"},
			},
			want: "1",
		},
		{
			name: "skips_wrong_location",
			holdings: []remote.HoldingSummary{
				{HoldingID: "1", Library: "DES", Location: "GEN"},
				{HoldingID: "2", Library: "HUA", Location: "NET"},
			},
			want: "2",
		},
		{
			name: "skips_long_library_code",
			holdings: []remote.HoldingSummary{
				{HoldingID: "1", Library: "WIDENER", Location: "NET"},
				{HoldingID: "2", Library: "MED", Location: "NET"},
			},
			want: "2",
		},
		{
			name:     "location_is_case_sensitive",
			holdings: []remote.HoldingSummary{{HoldingID: "1", Library: "DES", Location: "net"}},
			wantErr:  true,
		},
		{name: "empty_list", holdings: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectHolding(tt.holdings)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, failure.KindNotFound, failure.KindOf(err), "no eligible holding is a not found")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.HoldingID)
		})
	}
}

func TestConfirmed(t *testing.T) {
	want := DefaultURNPrefix + testutils.FixtureURN

	tests := []struct {
		name string
		got  string
		ok   bool
	}{
		{name: "exact", got: want, ok: true},
		{name: "trailing_space", got: want + " ", ok: false},
		{name: "placeholder", got: "Preservation master, [DRS OBJECT URN]", ok: false},
		{name: "empty", got: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, Confirmed(tt.got, want))
		})
	}
}

func TestAPIWorkflow_EndToEnd(t *testing.T) {
	ctx := testutils.Context(t)
	srv := testutils.NewAlmaServer(t)
	store := newSQLiteStore(t, ctx, state.Record{
		ExternalID:  testutils.FixtureExternalID,
		DirectoryID: "proquest2024010203-28542882-gsd",
		School:      "gsd",
		Status:      state.StatusIngested,
	})
	wf, files := newAPIWorkflow(t, newAlmaClient(t, srv), store)

	out, err := wf.Run(ctx, apiRequest())
	require.NoError(t, err, "run should succeed")

	assert.Equal(t, StateCompleted, out.State)
	assert.True(t, out.CatalogUpdated, "catalog should be updated")
	assert.True(t, out.StatusRecorded, "status should be recorded")
	assert.False(t, out.Transferred, "api delivery transfers nothing")
	assert.Equal(t, testutils.FixtureRecordID, out.RecordID)
	assert.Equal(t, testutils.FixtureHoldingID, out.HoldingID)

	assert.Equal(t, 2, srv.Calls("sru"), "search runs once to resolve and once to confirm")
	assert.Equal(t, 1, srv.Calls("holdings"))
	assert.Equal(t, 1, srv.Calls("holding"))
	assert.Equal(t, 1, srv.Calls("put"))
	assert.Equal(t, 0, srv.Calls("other"))

	put, err := marc.Parse(srv.LastPut())
	require.NoError(t, err, "uploaded body should parse")
	z, ok := put.Subfield("852", "z")
	require.True(t, ok, "uploaded body should carry 852 $z")
	assert.Equal(t, DefaultURNPrefix+testutils.FixtureURN, z)

	exists, err := files.FileExists(ctx, RunDir(testutils.FixtureExternalID))
	require.NoError(t, err)
	assert.False(t, exists, "run directory should be removed")

	assert.Equal(t, []state.Status{state.StatusAPISubmitted}, statuses(t, ctx, store, testutils.FixtureExternalID))
}

func TestAPIWorkflow_KeepsOtherBatchStatus(t *testing.T) {
	ctx := testutils.Context(t)
	srv := testutils.NewAlmaServer(t)
	store := newSQLiteStore(t, ctx,
		state.Record{ExternalID: testutils.FixtureExternalID, DirectoryID: "proquest2023071720-28542882-gsd", Status: state.StatusDropboxSubmitted},
		state.Record{ExternalID: testutils.FixtureExternalID, DirectoryID: "proquest2024010203-28542882-gsd", Status: state.StatusIngested},
	)
	wf, _ := newAPIWorkflow(t, newAlmaClient(t, srv), store)

	out, err := wf.Run(ctx, apiRequest())
	require.NoError(t, err, "run should succeed")
	assert.True(t, out.StatusRecorded)

	records, err := store.Query(ctx, state.Query{ExternalID: testutils.FixtureExternalID})
	require.NoError(t, err)
	got := map[string]state.Status{}
	for _, r := range records {
		got[r.DirectoryID] = r.Status
	}
	assert.Equal(t, map[string]state.Status{
		"proquest2023071720-28542882-gsd": state.StatusDropboxSubmitted,
		"proquest2024010203-28542882-gsd": state.StatusAPISubmitted,
	}, got, "only the waiting batch should change")
}

func TestAPIWorkflow_CustomURNPrefix(t *testing.T) {
	ctx := testutils.Context(t)
	srv := testutils.NewAlmaServer(t)
	store := newSQLiteStore(t, ctx, state.Record{ExternalID: testutils.FixtureExternalID, Status: state.StatusIngested})

	wf, err := NewAPIWorkflow(Options{
		Catalog:   newAlmaClient(t, srv),
		Store:     store,
		Files:     workdir.New(t.TempDir()),
		URNPrefix: "Preservation object, ",
	})
	require.NoError(t, err)

	out, err := wf.Run(ctx, apiRequest())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, out.State)

	put, err := marc.Parse(srv.LastPut())
	require.NoError(t, err)
	z, _ := put.Subfield("852", "z")
	assert.Equal(t, "Preservation object, "+testutils.FixtureURN, z)
}

func TestAPIWorkflow_AlreadyProcessed(t *testing.T) {
	ctx := testutils.Context(t)
	srv := testutils.NewAlmaServer(t)
	store := newSQLiteStore(t, ctx, state.Record{ExternalID: testutils.FixtureExternalID, Status: state.StatusAPISubmitted})
	wf, _ := newAPIWorkflow(t, newAlmaClient(t, srv), store)

	out, err := wf.Run(ctx, apiRequest())
	require.NoError(t, err, "a skip is not an error")

	assert.Equal(t, StateSkipped, out.State)
	assert.Equal(t, "already processed", out.Reason)
	assert.False(t, out.CatalogUpdated)
	assert.Equal(t, 0, srv.TotalCalls(), "no catalog calls after the guard")
}

func TestAPIWorkflow_ForceBypassesGuard(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "force", req: Request{ExternalID: testutils.FixtureExternalID, ObjectURN: testutils.FixtureURN, Force: true}},
		{name: "integration_test", req: Request{ExternalID: testutils.FixtureExternalID, ObjectURN: testutils.FixtureURN, IntegrationTest: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutils.Context(t)
			srv := testutils.NewAlmaServer(t)
			store := newSQLiteStore(t, ctx, state.Record{ExternalID: testutils.FixtureExternalID, Status: state.StatusAPISubmitted})
			wf, _ := newAPIWorkflow(t, newAlmaClient(t, srv), store)

			out, err := wf.Run(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, StateCompleted, out.State)
			assert.Equal(t, 1, srv.Calls("put"), "the holding should be written again")
		})
	}
}

func TestAPIWorkflow_Failures(t *testing.T) {
	tests := []struct {
		name           string
		req            Request
		setup          func(srv *testutils.AlmaServer)
		wantKind       failure.Kind
		catalogUpdated bool
		puts           int
	}{
		{
			name:     "unknown_identifier",
			req:      Request{ExternalID: "00000000", ObjectURN: testutils.FixtureURN},
			wantKind: failure.KindNotFound,
		},
		{
			name:     "holdings_list_unavailable",
			req:      apiRequest(),
			setup:    func(srv *testutils.AlmaServer) { srv.HoldingsStatus = http.StatusInternalServerError },
			wantKind: failure.KindTransport,
		},
		{
			name:     "put_rejected",
			req:      apiRequest(),
			setup:    func(srv *testutils.AlmaServer) { srv.PutStatus = http.StatusBadRequest },
			wantKind: failure.KindTransport,
			puts:     1,
		},
		{
			name:           "catalog_did_not_change",
			req:            apiRequest(),
			setup:          func(srv *testutils.AlmaServer) { srv.EchoPut = false },
			wantKind:       failure.KindConfirmationMismatch,
			catalogUpdated: true,
			puts:           1,
		},
		{
			name:     "missing_urn",
			req:      Request{ExternalID: testutils.FixtureExternalID},
			wantKind: failure.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutils.Context(t)
			srv := testutils.NewAlmaServer(t)
			if tt.setup != nil {
				tt.setup(srv)
			}
			store := newSQLiteStore(t, ctx, state.Record{ExternalID: testutils.FixtureExternalID, Status: state.StatusIngested})
			wf, files := newAPIWorkflow(t, newAlmaClient(t, srv), store)

			out, err := wf.Run(ctx, tt.req)
			require.Error(t, err, "run should fail")

			assert.Equal(t, StateFailed, out.State)
			assert.Equal(t, tt.wantKind, out.Kind, "failure kind should match: %v", err)
			assert.Equal(t, tt.wantKind, failure.KindOf(err))
			assert.Equal(t, tt.catalogUpdated, out.CatalogUpdated)
			assert.False(t, out.StatusRecorded, "status is only recorded on success")
			assert.Equal(t, tt.puts, srv.Calls("put"))

			assert.Equal(t, []state.Status{state.StatusIngested}, statuses(t, ctx, store, testutils.FixtureExternalID), "status should be untouched")

			exists, err := files.FileExists(ctx, RunDir(tt.req.ExternalID))
			require.NoError(t, err)
			assert.False(t, exists, "run directory should be removed on failure too")
		})
	}
}

func TestAPIWorkflow_StatusNotRecorded(t *testing.T) {
	ctx := testutils.Context(t)
	srv := testutils.NewAlmaServer(t)

	store := &testutils.MockStore{}
	store.On("UpdateStatus", mock.Anything, state.Query{ExternalID: testutils.FixtureExternalID, Status: state.StatusIngested}, state.StatusAPISubmitted).
		Return(0, errors.Errorf("updating records: %w", failure.ErrStore)).Once()

	wf, _ := newAPIWorkflow(t, newAlmaClient(t, srv), store)

	req := apiRequest()
	req.Force = true
	out, err := wf.Run(ctx, req)
	require.Error(t, err)

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, failure.KindStore, out.Kind)
	assert.True(t, out.CatalogUpdated, "the catalog write already happened")
	assert.False(t, out.StatusRecorded)
	store.AssertExpectations(t)
}

func TestAPIWorkflow_GuardStoreError(t *testing.T) {
	ctx := testutils.Context(t)
	catalog := &testutils.MockCatalog{}

	store := &testutils.MockStore{}
	store.On("Query", mock.Anything, state.Query{ExternalID: testutils.FixtureExternalID, Status: state.StatusAPISubmitted}).
		Return(nil, errors.Errorf("querying records: %w", failure.ErrStore)).Once()

	wf, _ := newAPIWorkflow(t, catalog, store)

	out, err := wf.Run(ctx, apiRequest())
	require.Error(t, err, "guard failure should propagate")
	assert.Equal(t, failure.KindStore, out.Kind)
	catalog.AssertNotCalled(t, "ResolveExternalID", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestAPIWorkflow_ConfirmRefetchFails(t *testing.T) {
	ctx := testutils.Context(t)
	catalog := &testutils.MockCatalog{}
	store := &testutils.MockStore{}

	holdingDoc, err := marc.ParseFile(filepath.Join("..", "marc", "testdata", "holding.xml"))
	require.NoError(t, err)

	found := &remote.SearchResult{RecordID: testutils.FixtureRecordID}
	catalog.On("ResolveExternalID", mock.Anything, testutils.FixtureExternalID).Return(found, nil).Once()
	catalog.On("ResolveExternalID", mock.Anything, testutils.FixtureExternalID).Return(nil, errors.Errorf("searching: %w", failure.ErrTransport)).Once()
	catalog.On("ListHoldings", mock.Anything, testutils.FixtureRecordID).Return(&remote.HoldingList{
		Holdings: []remote.HoldingSummary{{HoldingID: testutils.FixtureHoldingID, Library: "DES", Location: "NET"}},
	}, nil).Once()
	catalog.On("GetHolding", mock.Anything, testutils.FixtureRecordID, testutils.FixtureHoldingID).Return(&remote.Holding{
		RecordID:  testutils.FixtureRecordID,
		HoldingID: testutils.FixtureHoldingID,
		Document:  holdingDoc,
	}, nil).Once()
	catalog.On("PutHolding", mock.Anything, testutils.FixtureRecordID, testutils.FixtureHoldingID, mock.Anything).Return(nil).Once()

	wf, _ := newAPIWorkflow(t, catalog, store)

	req := apiRequest()
	req.Force = true
	out, err := wf.Run(ctx, req)
	require.Error(t, err)

	assert.Equal(t, failure.KindConfirmationMismatch, out.Kind, "a failed re-fetch cannot confirm the update")
	assert.True(t, out.CatalogUpdated)
	catalog.AssertExpectations(t)
	store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}
