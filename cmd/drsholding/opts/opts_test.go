package opts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/drsholding/pkg/config"
	"github.com/walteh/drsholding/pkg/lock"
	"github.com/walteh/drsholding/pkg/operation"
	"github.com/walteh/drsholding/pkg/state"
	"github.com/walteh/drsholding/pkg/testutils"
	"github.com/walteh/drsholding/templates"
)

func newRootOpts(t *testing.T, mutate func(cfg *config.Config)) *RootOpts {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir: dir,
		Dropbox: config.DropboxConfig{Transport: "local", Dir: filepath.Join(dir, "dropbox")},
	}
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Defaults()
	require.NoError(t, cfg.Validate(), "test config should validate")
	return &RootOpts{Config: cfg}
}

func TestRootOpts_OpenStore(t *testing.T) {
	ctx := testutils.Context(t)
	o := newRootOpts(t, nil)

	store, err := o.OpenStore(ctx)
	require.NoError(t, err, "sqlite store should open")
	defer store.Close(ctx)

	require.NoError(t, store.Insert(ctx, state.Record{ExternalID: "1", DirectoryID: "b", Status: state.StatusIngested}))
	records, err := store.Query(ctx, state.Query{ExternalID: "1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.FileExists(t, o.Config.Store.SQLitePath, "database should live in the data dir")
}

func TestRootOpts_OpenStore_UnknownDriver(t *testing.T) {
	o := newRootOpts(t, nil)
	o.Config.Store.Driver = "postgres"

	_, err := o.OpenStore(testutils.Context(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestRootOpts_Template(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name: "built_in",
			path: func(t *testing.T) string { return "" },
		},
		{
			name: "from_file",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "template.xml")
				require.NoError(t, os.WriteFile(p, templates.DRSHolding, 0644))
				return p
			},
		},
		{
			name:    "missing_file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.xml") },
			wantErr: "loading template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newRootOpts(t, nil)
			o.Config.Alma.Template = tt.path(t)

			doc, err := o.Template()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err, "template should load")
			assert.NotNil(t, doc)
		})
	}
}

func TestRootOpts_DropboxOpener(t *testing.T) {
	ctx := testutils.Context(t)
	o := newRootOpts(t, nil)

	open, err := o.DropboxOpener()
	require.NoError(t, err, "local transport should resolve")

	box, err := open(ctx)
	require.NoError(t, err, "local dropbox should open")
	defer box.Close()
	assert.Contains(t, box.Target(), o.Config.Dropbox.Dir)
}

func TestRootOpts_DropboxOpener_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		msg    string
	}{
		{
			name:   "sftp_without_server",
			mutate: func(cfg *config.Config) { cfg.Dropbox = config.DropboxConfig{Transport: "sftp"} },
			msg:    "dropbox.server is required",
		},
		{
			name:   "unknown_transport",
			mutate: func(cfg *config.Config) { cfg.Dropbox.Transport = "ftp" },
			msg:    "dropbox transport ftp not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newRootOpts(t, tt.mutate)
			_, err := o.DropboxOpener()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRootOpts_Locker_Noop(t *testing.T) {
	o := newRootOpts(t, nil)

	locker, closeLocker, err := o.Locker(testutils.Context(t))
	require.NoError(t, err)
	assert.IsType(t, lock.Noop{}, locker, "no redis means no locking")
	assert.NoError(t, closeLocker())
}

func TestRootOpts_Router_RequiresCatalog(t *testing.T) {
	ctx := testutils.Context(t)
	o := newRootOpts(t, nil)
	store, err := o.OpenStore(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)

	_, err = o.Router(ctx, store, lock.Noop{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alma.api_base is required")
}

func TestRootOpts_Router_Dispatch(t *testing.T) {
	ctx := testutils.Context(t)
	srv := testutils.NewAlmaServer(t)
	o := newRootOpts(t, func(cfg *config.Config) {
		cfg.Alma = config.AlmaConfig{APIBase: srv.URL, APIKey: testutils.FixtureAPIKey, SRUBase: srv.SRUBase()}
	})

	store, err := o.OpenStore(ctx)
	require.NoError(t, err)
	defer store.Close(ctx)
	require.NoError(t, store.Insert(ctx, state.Record{
		ExternalID:  testutils.FixtureExternalID,
		DirectoryID: "proquest2024010203-28542882-gsd",
		School:      "gsd",
		Status:      state.StatusIngested,
	}))

	router, err := o.Router(ctx, store, lock.Noop{})
	require.NoError(t, err, "router should build from config")

	out, err := router.Dispatch(ctx, operation.Request{ExternalID: testutils.FixtureExternalID, ObjectURN: testutils.FixtureURN})
	require.NoError(t, err, "dispatch should succeed")
	assert.Equal(t, operation.ModeAPI, out.Mode, "records outside the pre-ingest repository go through the api")
	assert.Equal(t, operation.StateCompleted, out.State)
	assert.Equal(t, 1, srv.Calls("put"))
}
