// Package school maps a school's dropbox name to its three-character library code.
package school

import (
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
)

var libraryCodes = map[string]string{
	"hbs":     "BAK",
	"college": "HUA",
	"hds":     "HUA",
	"gsd":     "DES",
	"hms":     "MED",
	"hsph":    "MED",
	"dce":     "HUA",
	"gsas":    "HUA",
	"edld":    "HUA",
	"gse":     "HUA",
	"hsdm":    "MED",
}

// LibraryCode returns the uppercase library code for school
func LibraryCode(school string) (string, error) {
	code, ok := libraryCodes[strings.ToLower(school)]
	if !ok {
		return "", errors.Errorf("%w: no library code for school %q", failure.ErrNotFound, school)
	}
	return strings.ToUpper(code), nil
}

var batchSchool = regexp.MustCompile(`^proquest\d+-\d+-(\w+)`)

// FromBatch extracts the school suffix of a batch name like proquest2023071720-993578-gsd
func FromBatch(batch string) (string, bool) {
	m := batchSchool.FindStringSubmatch(batch)
	if m == nil {
		return "", false
	}
	return m[1], true
}
