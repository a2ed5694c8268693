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

package remote

import (
	"context"

	"github.com/walteh/drsholding/pkg/marc"
)

// Catalog is the library catalog the holding is synchronized into (e.g. Alma).
// Every call is a single attempt; callers decide what a failure means.
type Catalog interface {
	// ResolveExternalID searches the catalog for a vendor identifier and returns the bib record found
	ResolveExternalID(ctx context.Context, externalID string) (*SearchResult, error)
	// ListHoldings returns the holdings attached to a bib record, in catalog order
	ListHoldings(ctx context.Context, recordID string) (*HoldingList, error)
	// GetHolding fetches a single holding record
	GetHolding(ctx context.Context, recordID, holdingID string) (*Holding, error)
	// PutHolding replaces a holding record with body
	PutHolding(ctx context.Context, recordID, holdingID string, body []byte) error
}

// SearchResult is the outcome of a search-by-external-id
type SearchResult struct {
	// RecordID is the catalog's internal identifier (mms id)
	RecordID string
	Raw      []byte
	Document *marc.Document
}

// HoldingList is a bib record's holdings list
type HoldingList struct {
	Holdings []HoldingSummary
	Raw      []byte
}

// HoldingSummary is one entry of a holdings list
type HoldingSummary struct {
	HoldingID string
	Library   string
	Location  string
}

// Holding is a fetched holding record
type Holding struct {
	RecordID  string
	HoldingID string
	Raw       []byte
	Document  *marc.Document
}

// Dropbox moves a local file onto the server the catalog polls for imports
type Dropbox interface {
	// Put copies localPath to remotePath
	Put(ctx context.Context, localPath, remotePath string) error
	// Target describes where files land, for log lines
	Target() string
	Close() error
}

// DropboxArgs carries everything a dropbox transport might need to connect
type DropboxArgs struct {
	Server         string
	User           string
	PrivateKeyPath string
	// KnownHostsPath enables host key verification when set
	KnownHostsPath string
	// Dir is the root directory used by the local transport
	Dir string
}
