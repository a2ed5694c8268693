// Package templates carries the record templates shipped with the worker.
package templates

import (
	_ "embed"
)

// DRSHolding is the MARCXML template rendered for dropbox delivery
//
//go:embed alma_marcxml_drsholding_template.xml
var DRSHolding []byte
