package manifest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/workdir"
)

const fixtureBatch = "proquest2023071720-993578-gsd"

func TestTitleIndicator(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "The X", want: "4"},
		{title: "An X", want: "3"},
		{title: "A X", want: "2"},
		{title: "X", want: "0"},
		{title: `"The X`, want: "4"},
		{title: "THE END", want: "4"},
		{title: "an apple", want: "3"},
		{title: "a", want: "0"},
		{title: "Theory of Everything", want: "0"},
		{title: "Another day", want: "0"},
		{title: "", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleIndicator(tt.title))
		})
	}
}

func TestLocate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setup     func(t *testing.T, dir string)
		batch     string
		want      string
		wantError bool
	}{
		{
			name: "direct",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "in", "b1", FileName), "<mets/>")
				writeFile(t, filepath.Join(dir, "in", "b1", "nested", FileName), "<mets/>")
			},
			batch: "b1",
			want:  filepath.Join("in", "b1", FileName),
		},
		{
			name: "nested",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "in", "b2", "z", FileName), "<mets/>")
				writeFile(t, filepath.Join(dir, "in", "b2", "a", "deep", FileName), "<mets/>")
			},
			batch: "b2",
			want:  filepath.Join("in", "b2", "a", "deep", FileName),
		},
		{
			name:      "missing_batch",
			batch:     "nope",
			wantError: true,
		},
		{
			name: "batch_without_manifest",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, "in", "b3", "other.xml"), "<x/>")
			},
			batch:     "b3",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setup != nil {
				tt.setup(t, dir)
			}

			got, err := Locate(ctx, dir, tt.batch)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, failure.ErrNotFound)
				assert.Contains(t, err.Error(), "manifest not found")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.want), got)
		})
	}
}

func TestSanitize(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := filepath.Join(dir, FileName)
	writeFile(t, p, "<mets>\n<title>bad\x0b\x0c\x01title\x1f</title>\r\n\t</mets>\n")

	require.NoError(t, Sanitize(ctx, workdir.New(dir), p))

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "<mets>\n<title>bad\x0btitle</title>\r\n\t</mets>\n", string(got))

	require.NoError(t, Sanitize(ctx, workdir.New(dir), p), "sanitizing twice is a no-op")
}

func TestSanitize_IllFormedUTF8(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "control_and_ill_formed", content: "<mets>caf\xe9\x01</mets>", want: "<mets>caf\xe9</mets>"},
		{name: "ill_formed_only", content: "<mets>caf\xe9</mets>", want: "<mets>caf\xe9</mets>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			ctx := zerolog.New(&logs).WithContext(context.Background())
			dir := t.TempDir()
			p := filepath.Join(dir, FileName)
			writeFile(t, p, tt.content)

			require.NoError(t, Sanitize(ctx, workdir.New(dir), p))

			got, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, []byte(tt.want), got, "ill-formed bytes should not be replaced")
			assert.Contains(t, logs.String(), "not valid UTF-8", "ill-formed input should be reported")
		})
	}
}

func TestSanitize_Missing(t *testing.T) {
	dir := t.TempDir()
	err := Sanitize(context.Background(), workdir.New(dir), filepath.Join(dir, FileName))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sanitizing manifest")
}

func TestExtract(t *testing.T) {
	md, err := Extract(filepath.Join("testdata", "in", fixtureBatch, FileName))
	require.NoError(t, err, "fixture should extract")

	assert.Equal(t, "2023-05", md.DateCreated)
	assert.Equal(t, "Naming Expeditor: Reimagining Institutional Naming System at Harvard", md.Title)
	assert.Equal(t, "0", md.TitleIndicator2)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantError string
	}{
		{
			name: "missing_date",
			content: `<mets:mets xmlns:mets="http://www.loc.gov/METS/" xmlns:dim="http://www.dspace.org/xmlns/dspace/dim">` +
				`<mets:dmdSec><dim:field mdschema="dc" element="title">The Title</dim:field></mets:dmdSec></mets:mets>`,
			wantError: "failed to find dateCreated",
		},
		{
			name: "missing_title",
			content: `<mets:mets xmlns:mets="http://www.loc.gov/METS/" xmlns:dim="http://www.dspace.org/xmlns/dspace/dim">` +
				`<mets:dmdSec><dim:field mdschema="dc" element="date" qualifier="created">2020</dim:field></mets:dmdSec></mets:mets>`,
			wantError: "failed to find title",
		},
		{
			name: "wrong_namespace",
			content: `<mets xmlns="urn:other" xmlns:dim="http://www.dspace.org/xmlns/dspace/dim">` +
				`<dmdSec><dim:field mdschema="dc" element="date" qualifier="created">2020</dim:field>` +
				`<dim:field mdschema="dc" element="title">T</dim:field></dmdSec></mets>`,
			wantError: "failed to find dateCreated",
		},
		{
			name:      "not_xml",
			content:   "<<mets>",
			wantError: "parsing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), FileName)
			writeFile(t, p, tt.content)

			_, err := Extract(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, failure.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}

func TestExtract_TitleIndicatorFromManifest(t *testing.T) {
	p := filepath.Join(t.TempDir(), FileName)
	writeFile(t, p, `<mets:mets xmlns:mets="http://www.loc.gov/METS/" xmlns:dim="http://www.dspace.org/xmlns/dspace/dim">`+
		`<mets:dmdSec><dim:field mdschema="dc" element="date" qualifier="created">2021-11</dim:field>`+
		`<dim:field mdschema="dc" element="title">An Essay</dim:field></mets:dmdSec></mets:mets>`)

	md, err := Extract(p)
	require.NoError(t, err)
	assert.Equal(t, "3", md.TitleIndicator2)
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}
