package alma_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/provider/alma"
	"github.com/walteh/drsholding/pkg/testutils"
)

func newClient(t *testing.T, s *testutils.AlmaServer) *alma.Client {
	t.Helper()
	c, err := alma.New(alma.Options{
		APIBase: s.URL,
		APIKey:  testutils.FixtureAPIKey,
		SRUBase: s.SRUBase(),
	})
	require.NoError(t, err, "creating client should succeed")
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    alma.Options
		wantErr string
	}{
		{name: "missing_api_base", opts: alma.Options{APIKey: "k", SRUBase: "s"}, wantErr: "api base is required"},
		{name: "missing_api_key", opts: alma.Options{APIBase: "http://x", SRUBase: "s"}, wantErr: "api key is required"},
		{name: "missing_sru_base", opts: alma.Options{APIBase: "http://x", APIKey: "k"}, wantErr: "sru base is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alma.New(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveExternalID(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	c := newClient(t, s)

	res, err := c.ResolveExternalID(ctx, testutils.FixtureExternalID)
	require.NoError(t, err, "resolving should succeed")
	assert.Equal(t, testutils.FixtureRecordID, res.RecordID, "mms id should come from recordIdentifier")
	require.NotNil(t, res.Document)

	z, ok := res.Document.Subfield("852", "z")
	require.True(t, ok, "search result should carry 852 $z")
	assert.Equal(t, "Preservation master, [DRS OBJECT URN]", z)
}

func TestResolveExternalID_NotFound(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	c := newClient(t, s)

	_, err := c.ResolveExternalID(ctx, "00000000")
	require.Error(t, err, "an empty search should fail")
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestResolveExternalID_Non200(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)

	c, err := alma.New(alma.Options{APIBase: s.URL, APIKey: testutils.FixtureAPIKey, SRUBase: s.URL + "/nowhere?q="})
	require.NoError(t, err)

	_, err = c.ResolveExternalID(ctx, testutils.FixtureExternalID)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrNotFound, "non-200 search should be not found")
}

func TestListHoldings(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	c := newClient(t, s)

	list, err := c.ListHoldings(ctx, testutils.FixtureRecordID)
	require.NoError(t, err, "listing should succeed")
	require.Len(t, list.Holdings, 3, "all holdings should be listed")

	assert.Equal(t, "WID", list.Holdings[0].Library)
	assert.Equal(t, "GEN", list.Holdings[0].Location)
	assert.Equal(t, "HDIG", list.Holdings[1].Library)
	assert.Equal(t, testutils.FixtureHoldingID, list.Holdings[2].HoldingID)
	assert.Equal(t, "DES", list.Holdings[2].Library)
	assert.Equal(t, "NET", list.Holdings[2].Location)
	assert.NotEmpty(t, list.Raw, "raw body should be kept for snapshots")
}

func TestListHoldings_Non200(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	s.HoldingsStatus = http.StatusInternalServerError
	c := newClient(t, s)

	_, err := c.ListHoldings(ctx, testutils.FixtureRecordID)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrTransport)
	assert.Contains(t, err.Error(), "status 500", "status should be in the message")
}

func TestListHoldings_Body(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantError string
	}{
		{name: "no_holdings", body: `<holdings total_record_count="0"></holdings>`, wantCount: 0},
		{
			name:      "missing_children",
			body:      `<holdings><holding><holding_id> 221 </holding_id></holding></holdings>`,
			wantCount: 1,
		},
		{name: "not_xml", body: `{"holding": []}`, wantError: "validation"},
		{name: "wrong_root", body: `<bib><holding/></bib>`, wantError: "expected a holdings document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutils.Context(t)
			s := testutils.NewAlmaServer(t)
			s.HoldingsBody = []byte(tt.body)
			c := newClient(t, s)

			list, err := c.ListHoldings(ctx, testutils.FixtureRecordID)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, failure.ErrValidation)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			require.Len(t, list.Holdings, tt.wantCount)
			if tt.wantCount == 1 {
				assert.Equal(t, "221", list.Holdings[0].HoldingID, "ids should be trimmed")
				assert.Empty(t, list.Holdings[0].Library, "a missing library is empty")
			}
		})
	}
}

func TestGetHolding(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	c := newClient(t, s)

	h, err := c.GetHolding(ctx, testutils.FixtureRecordID, testutils.FixtureHoldingID)
	require.NoError(t, err, "getting holding should succeed")

	leader, ok := h.Document.Leader()
	require.True(t, ok)
	assert.NotEmpty(t, leader)

	id, ok := h.Document.ControlField("001")
	require.True(t, ok)
	assert.Equal(t, testutils.FixtureHoldingID, id)
}

func TestGetHolding_Missing(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	c := newClient(t, s)

	_, err := c.GetHolding(ctx, testutils.FixtureRecordID, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestPutHolding(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	c := newClient(t, s)

	body := []byte(`<holding><record><datafield tag="852"><subfield code="z">x</subfield></datafield></record></holding>`)
	err := c.PutHolding(ctx, testutils.FixtureRecordID, testutils.FixtureHoldingID, body)
	require.NoError(t, err, "put should succeed")
	assert.Equal(t, body, s.LastPut(), "body should reach the server unchanged")
}

func TestPutHolding_Rejected(t *testing.T) {
	ctx := testutils.Context(t)
	s := testutils.NewAlmaServer(t)
	s.PutStatus = http.StatusBadRequest
	c := newClient(t, s)

	err := c.PutHolding(ctx, testutils.FixtureRecordID, testutils.FixtureHoldingID, []byte("<holding/>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrTransport)
}

func TestAPIKeyNotInErrors(t *testing.T) {
	ctx := testutils.Context(t)

	c, err := alma.New(alma.Options{
		APIBase: "http://127.0.0.1:1",
		APIKey:  "super-secret",
		SRUBase: "http://127.0.0.1:1/sru?q=",
	})
	require.NoError(t, err)

	_, err = c.ListHoldings(ctx, testutils.FixtureRecordID)
	require.Error(t, err, "unreachable host should fail")
	assert.ErrorIs(t, err, failure.ErrTransport)
	assert.False(t, strings.Contains(err.Error(), "super-secret"), "api key must not leak into errors")
}
