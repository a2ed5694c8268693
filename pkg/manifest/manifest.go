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

// Package manifest reads the METS package manifest that accompanies an ingested batch.
package manifest

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/text"
)

const (
	// FileName is the manifest every batch directory carries
	FileName = "mets.xml"

	NamespaceMETS = "http://www.loc.gov/METS/"
	NamespaceDIM  = "http://www.dspace.org/xmlns/dspace/dim"

	schemaDC = "dc"
)

// 📄 Metadata holds what the dropbox record needs from a manifest
type Metadata struct {
	DateCreated     string
	Title           string
	TitleIndicator2 string
}

// FileManager is the subset of workdir.Manager the sanitizer uses
type FileManager interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFileAtomic(ctx context.Context, path string, content []byte) error
}

// 🔍 Locate returns the manifest path for batch under dataDir/in. A manifest at the
// top of the batch directory wins; otherwise the first nested one in lexical order is used.
func Locate(ctx context.Context, dataDir, batch string) (string, error) {
	direct := filepath.Join(dataDir, "in", batch, FileName)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	} else if !os.IsNotExist(err) {
		return "", errors.Errorf("checking %s: %w", direct, err)
	}

	pattern := path.Join("in", batch, "**", FileName)
	matches, err := doublestar.Glob(os.DirFS(dataDir), pattern)
	if err != nil {
		return "", errors.Errorf("globbing %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", errors.Errorf("%s: %w: manifest not found for %s", direct, failure.ErrNotFound, batch)
	}
	sort.Strings(matches)

	found := filepath.Join(dataDir, filepath.FromSlash(matches[0]))
	zerolog.Ctx(ctx).Debug().Str("batch", batch).Str("path", found).Msg("using nested manifest")
	return found, nil
}

// 🧹 Sanitize strips XML-invalid control characters from the manifest in place
func Sanitize(ctx context.Context, files FileManager, manifestPath string) error {
	content, err := files.ReadFile(ctx, manifestPath)
	if err != nil {
		return errors.Errorf("sanitizing manifest: %w", err)
	}

	if !utf8.Valid(content) {
		zerolog.Ctx(ctx).Warn().Str("path", manifestPath).Msg("manifest is not valid UTF-8, ill-formed bytes are left in place")
	}

	clean := text.StripControlBytes(content)
	if bytes.Equal(clean, content) {
		return nil
	}

	zerolog.Ctx(ctx).Debug().Str("path", manifestPath).Int("removed", len(content)-len(clean)).Msg("stripped control characters")
	if err := files.WriteFileAtomic(ctx, manifestPath, clean); err != nil {
		return errors.Errorf("sanitizing manifest: %w", err)
	}
	return nil
}

// Extract reads the dc date created and title from the manifest's descriptive metadata.
// The first matching field wins. A missing value is a validation failure naming the field.
func Extract(manifestPath string) (*Metadata, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(manifestPath); err != nil {
		return nil, errors.Errorf("parsing %s: %w: %w", manifestPath, failure.ErrValidation, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.Errorf("parsing %s: %w: empty document", manifestPath, failure.ErrValidation)
	}

	md := &Metadata{}
	for _, sec := range root.SelectElements("dmdSec") {
		if sec.NamespaceURI() != NamespaceMETS {
			continue
		}
		for _, field := range sec.FindElements(".//field") {
			if field.NamespaceURI() != NamespaceDIM {
				continue
			}
			if field.SelectAttrValue("mdschema", "") != schemaDC {
				continue
			}
			switch field.SelectAttrValue("element", "") {
			case "date":
				if md.DateCreated == "" && field.SelectAttrValue("qualifier", "") == "created" {
					md.DateCreated = field.Text()
				}
			case "title":
				if md.Title == "" {
					md.Title = field.Text()
				}
			}
		}
	}

	if md.DateCreated == "" {
		return nil, errors.Errorf("%w: failed to find dateCreated in %s", failure.ErrValidation, manifestPath)
	}
	if md.Title == "" {
		return nil, errors.Errorf("%w: failed to find title in %s", failure.ErrValidation, manifestPath)
	}
	md.TitleIndicator2 = TitleIndicator(md.Title)

	return md, nil
}

var articles = []struct {
	re        *regexp.Regexp
	indicator string
}{
	{regexp.MustCompile(`(?i)^"?the `), "4"},
	{regexp.MustCompile(`(?i)^"?an `), "3"},
	{regexp.MustCompile(`(?i)^"?a `), "2"},
}

// TitleIndicator returns the 245 second indicator: the count of leading characters to skip when filing
func TitleIndicator(title string) string {
	for _, a := range articles {
		if a.re.MatchString(title) {
			return a.indicator
		}
	}
	return "0"
}
