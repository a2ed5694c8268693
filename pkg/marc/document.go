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
	"bytes"
	"fmt"

	"github.com/beevik/etree"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
)

// XMLDeclaration prefixes every serialized record file
const XMLDeclaration = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// 📚 Document is a MARCXML record, or a holding/search envelope containing one.
// Lookups are namespace agnostic and the first match always wins.
type Document struct {
	doc *etree.Document
}

// Parse reads a document from raw XML bytes
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Errorf("parsing xml: %w: %w", failure.ErrValidation, err)
	}
	if doc.Root() == nil {
		return nil, errors.Errorf("parsing xml: %w: document has no root element", failure.ErrValidation)
	}
	return &Document{doc: doc}, nil
}

// ParseFile reads a document from disk
func ParseFile(path string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.Errorf("reading %s: %w: %w", path, failure.ErrValidation, err)
	}
	if doc.Root() == nil {
		return nil, errors.Errorf("reading %s: %w: document has no root element", path, failure.ErrValidation)
	}
	return &Document{doc: doc}, nil
}

// Copy returns a deep copy of d
func (d *Document) Copy() *Document {
	return &Document{doc: d.doc.Copy()}
}

// Root returns the document's root element
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// Record returns the first <record> element, which may be the root itself
func (d *Document) Record() *etree.Element {
	root := d.doc.Root()
	if root.Tag == "record" {
		return root
	}
	return root.FindElement(".//record")
}

// 🔍 Find returns the text of the first element matching an etree path
func (d *Document) Find(path string) (string, bool) {
	el := d.doc.FindElement(path)
	if el == nil {
		return "", false
	}
	return el.Text(), true
}

// Leader returns the record leader
func (d *Document) Leader() (string, bool) {
	return d.Find("//record/leader")
}

// ControlField returns the first control field with the given tag
func (d *Document) ControlField(tag string) (string, bool) {
	return d.Find(fmt.Sprintf("//record/controlfield[@tag='%s']", tag))
}

// Subfield returns the first subfield with code found under a datafield with tag
func (d *Document) Subfield(tag, code string) (string, bool) {
	return d.Find(fmt.Sprintf("//datafield[@tag='%s']/subfield[@code='%s']", tag, code))
}

// HeaderField returns a holding header element such as created_by
func (d *Document) HeaderField(name string) (string, bool) {
	return d.Find("//holding/" + name)
}

// ✅ ValidateHolding checks the fields every holding must carry
func (d *Document) ValidateHolding() error {
	if v, ok := d.Leader(); !ok || v == "" {
		return errors.Errorf("holding record: %w: missing leader", failure.ErrValidation)
	}
	for _, tag := range []string{"001", "005", "008"} {
		if v, ok := d.ControlField(tag); !ok || v == "" {
			return errors.Errorf("holding record: %w: missing controlfield %s", failure.ErrValidation, tag)
		}
	}
	return nil
}

// Bytes serializes the whole document behind a fresh XML declaration
func (d *Document) Bytes() ([]byte, error) {
	return serialize(d.doc.Root())
}

// RecordBytes serializes only the <record> element without a declaration
func (d *Document) RecordBytes() ([]byte, error) {
	rec := d.Record()
	if rec == nil {
		return nil, errors.Errorf("serializing record: %w: no record element", failure.ErrTransform)
	}
	out := etree.NewDocument()
	out.SetRoot(rec.Copy())
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, errors.Errorf("serializing record: %w", err)
	}
	return b, nil
}

func serialize(root *etree.Element) ([]byte, error) {
	out := etree.NewDocument()
	out.SetRoot(root.Copy())

	body, err := out.WriteToBytes()
	if err != nil {
		return nil, errors.Errorf("serializing document: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(XMLDeclaration)
	buf.Write(body)
	return buf.Bytes(), nil
}
