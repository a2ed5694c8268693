package marc

import (
	"bytes"
)

const (
	// CollectionStart opens a MARC21slim collection
	CollectionStart = `<collection xmlns="http://www.loc.gov/MARC21/slim" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://www.loc.gov/MARC21/slim http://www.loc.gov/standards/marcxml/schema/MARC21slim.xsd">`
	// CollectionEnd closes it
	CollectionEnd = `</collection>`
)

// 📦 Collection accumulates serialized records for a single dropbox file
type Collection struct {
	records [][]byte
}

// Add appends one serialized <record> element
func (c *Collection) Add(record []byte) {
	c.records = append(c.records, record)
}

// Bytes renders the declaration, envelope and every record
func (c *Collection) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(XMLDeclaration)
	buf.WriteString(CollectionStart)
	buf.WriteByte('\n')
	for _, r := range c.records {
		buf.Write(r)
	}
	buf.WriteString(CollectionEnd)
	buf.WriteByte('\n')
	return buf.Bytes()
}
