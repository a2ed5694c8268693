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

// Package failure holds the error kinds a holding sync can terminate with.
package failure

import (
	"gitlab.com/tozd/go/errors"
)

// 🏷️ Kind classifies a terminal failure
type Kind string

const (
	KindNone                 Kind = ""
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation"
	KindTransport            Kind = "transport"
	KindTransform            Kind = "transform"
	KindConfirmationMismatch Kind = "confirmation_mismatch"
	KindStore                Kind = "store"
	KindUnknown              Kind = "unknown"
)

var (
	// ErrNotFound covers unresolvable identifiers, absent holdings, missing manifests and empty store lookups
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when a parsed document lacks a required field
	ErrValidation = errors.New("validation failure")
	// ErrTransport is a non-200 response or a file transfer error
	ErrTransport = errors.New("transport failure")
	// ErrTransform means a substitution rule could not be applied
	ErrTransform = errors.New("transform failure")
	// ErrConfirmationMismatch means the catalog did not reflect the update after a successful write
	ErrConfirmationMismatch = errors.New("confirmation mismatch")
	// ErrStore wraps record store query and update errors
	ErrStore = errors.New("store failure")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrValidation, KindValidation},
	{ErrTransport, KindTransport},
	{ErrTransform, KindTransform},
	{ErrConfirmationMismatch, KindConfirmationMismatch},
	{ErrStore, KindStore},
}

// 🔍 KindOf returns the kind of the first taxonomy error found in err's chain
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// String implements fmt.Stringer
func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}
