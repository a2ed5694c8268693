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

package marc

import (
	"context"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/text"
)

// FileWriter persists a rendered record
type FileWriter interface {
	WriteFileAtomic(ctx context.Context, path string, content []byte) error
}

// 🔄 Transformer renders templates and patches fetched holdings
type Transformer struct {
	files    FileWriter
	replacer *text.SimpleTextReplacer
	rules    []Rule
}

// NewTransformer creates a transformer using TemplateRules
func NewTransformer(files FileWriter) *Transformer {
	return &Transformer{
		files:    files,
		replacer: text.NewSimpleTextReplacer(),
		rules:    TemplateRules,
	}
}

// Render applies every rule to a copy of tmpl. Only the first occurrence of a token
// inside a matched element is replaced; everything around it is kept.
func (t *Transformer) Render(ctx context.Context, tmpl *Document, values Values) (*Document, error) {
	out := tmpl.Copy()

	var walkErr error
	walk(out.Root(), func(el *etree.Element) bool {
		for _, rule := range t.rules {
			ok, err := matches(el, rule)
			if err != nil {
				walkErr = err
				return false
			}
			if !ok {
				continue
			}
			if err := t.apply(el, rule, values); err != nil {
				walkErr = err
				return false
			}
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	zerolog.Ctx(ctx).Debug().Int("rules", len(t.rules)).Msg("rendered template")
	return out, nil
}

// RenderToFile renders tmpl and writes the result to path
func (t *Transformer) RenderToFile(ctx context.Context, tmpl *Document, values Values, path string) (*Document, error) {
	out, err := t.Render(ctx, tmpl, values)
	if err != nil {
		return nil, err
	}
	if err := t.write(ctx, out, path); err != nil {
		return nil, err
	}
	return out, nil
}

// 📌 ApplyURN sets the 852$z subfield of a copy of src to prefix+urn.
// The subfield is created when the 852 field lacks one. Nothing else changes.
func (t *Transformer) ApplyURN(ctx context.Context, src *Document, prefix, urn string) (*Document, error) {
	out := src.Copy()

	sub := out.doc.FindElement("//datafield[@tag='852']/subfield[@code='z']")
	if sub == nil {
		df := out.doc.FindElement("//datafield[@tag='852']")
		if df == nil {
			return nil, errors.Errorf("applying urn: %w: record has no 852 datafield", failure.ErrTransform)
		}
		sub = df.CreateElement("subfield")
		sub.CreateAttr("code", "z")
		zerolog.Ctx(ctx).Debug().Msg("added missing 852$z subfield")
	}
	sub.SetText(prefix + urn)

	return out, nil
}

// ApplyURNToFile patches src and writes the result to path, returning the written bytes
func (t *Transformer) ApplyURNToFile(ctx context.Context, src *Document, prefix, urn, path string) (*Document, []byte, error) {
	out, err := t.ApplyURN(ctx, src, prefix, urn)
	if err != nil {
		return nil, nil, err
	}
	b, err := out.Bytes()
	if err != nil {
		return nil, nil, errors.Errorf("applying urn: %w: %w", failure.ErrTransform, err)
	}
	if err := t.files.WriteFileAtomic(ctx, path, b); err != nil {
		return nil, nil, errors.Errorf("writing %s: %w", path, err)
	}
	return out, b, nil
}

func (t *Transformer) write(ctx context.Context, doc *Document, path string) error {
	b, err := doc.Bytes()
	if err != nil {
		return errors.Errorf("rendering %s: %w: %w", path, failure.ErrTransform, err)
	}
	if err := t.files.WriteFileAtomic(ctx, path, b); err != nil {
		return errors.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (t *Transformer) apply(el *etree.Element, rule Rule, values Values) error {
	current := el.Text()
	replacements := make([]text.ReplacementRule, 0, len(rule.Text))
	for _, ph := range rule.Text {
		if !strings.Contains(current, ph.Token) {
			continue
		}
		v, ok := values[ph.Key]
		if !ok {
			return errors.Errorf("rule %s: %w: no value for %s", rule.Name, failure.ErrTransform, ph.Key)
		}
		replacements = append(replacements, text.ReplacementRule{FromText: ph.Token, ToText: v})
	}
	if len(replacements) > 0 {
		res := t.replacer.ReplaceString(current, replacements)
		el.SetText(string(res.ModifiedContent))
	}

	if rule.Ind2 == nil {
		return nil
	}
	parent := el.Parent()
	attr := parent.SelectAttr("ind2")
	if attr == nil {
		return errors.Errorf("rule %s: %w: datafield %s has no ind2", rule.Name, failure.ErrTransform, rule.Tag)
	}
	if !strings.Contains(attr.Value, rule.Ind2.Token) {
		return nil
	}
	v, ok := values[rule.Ind2.Key]
	if !ok {
		return errors.Errorf("rule %s: %w: no value for %s", rule.Name, failure.ErrTransform, rule.Ind2.Key)
	}
	attr.Value = strings.Replace(attr.Value, rule.Ind2.Token, v, 1)
	return nil
}

func matches(el *etree.Element, rule Rule) (bool, error) {
	if el.Tag != rule.Element {
		return false, nil
	}

	switch rule.Element {
	case "controlfield":
		tag := el.SelectAttr("tag")
		if tag == nil {
			return false, errors.Errorf("rule %s: %w: controlfield without tag", rule.Name, failure.ErrTransform)
		}
		return tag.Value == rule.Tag, nil
	case "subfield":
		parent := el.Parent()
		if parent == nil || parent.Tag != "datafield" {
			return false, nil
		}
		tag := parent.SelectAttr("tag")
		if tag == nil {
			return false, errors.Errorf("rule %s: %w: datafield without tag", rule.Name, failure.ErrTransform)
		}
		if tag.Value != rule.Tag {
			return false, nil
		}
		code := el.SelectAttr("code")
		if code == nil {
			return false, errors.Errorf("rule %s: %w: subfield of %s without code", rule.Name, failure.ErrTransform, rule.Tag)
		}
		return code.Value == rule.Code, nil
	default:
		return true, nil
	}
}

func walk(el *etree.Element, fn func(*etree.Element) bool) bool {
	if !fn(el) {
		return false
	}
	for _, child := range el.ChildElements() {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}
