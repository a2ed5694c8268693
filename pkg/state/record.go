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

// Package state holds the processing status records shared with the rest of the ETD pipeline.
package state

import (
	"context"
	"time"
)

// Status is the pipeline stage a record has reached
type Status string

const (
	// StatusIngested is set upstream once the thesis is in Alma and waiting for its holding
	StatusIngested Status = "ALMA"
	// StatusDropboxSubmitted marks a holding sent through the dropbox
	StatusDropboxSubmitted Status = "DRS_HOLDING_DROPBOX"
	// StatusAPISubmitted marks a holding updated through the API
	StatusAPISubmitted Status = "DRS_HOLDING_API"
)

// Field names as stored in the shared collection
const (
	FieldExternalID       = "proquest_id"
	FieldDirectoryID      = "directory_id"
	FieldSchool           = "school_alma_dropbox"
	FieldStatus           = "alma_submission_status"
	FieldInDash           = "indash"
	FieldInsertionDate    = "insertion_date"
	FieldLastModifiedDate = "last_modified_date"
	FieldDropboxDate      = "alma_dropbox_submission_date"
)

// 📄 Record is one thesis in one batch
type Record struct {
	ExternalID  string `bson:"proquest_id" json:"proquest_id"`
	DirectoryID string `bson:"directory_id" json:"directory_id"`
	School      string `bson:"school_alma_dropbox" json:"school_alma_dropbox"`
	Status      Status `bson:"alma_submission_status" json:"alma_submission_status"`
	// InDash is true when the item is already in the pre-ingest repository
	InDash bool `bson:"indash" json:"indash"`

	InsertionDate     time.Time  `bson:"insertion_date" json:"insertion_date"`
	LastModifiedDate  time.Time  `bson:"last_modified_date" json:"last_modified_date"`
	DropboxSubmission *time.Time `bson:"alma_dropbox_submission_date,omitempty" json:"alma_dropbox_submission_date,omitempty"`
}

// Query selects records; empty fields are not constrained
type Query struct {
	ExternalID  string
	DirectoryID string
	Status      Status
}

// IsEmpty reports whether q would match every record
func (q Query) IsEmpty() bool {
	return q.ExternalID == "" && q.DirectoryID == "" && q.Status == ""
}

// 💾 Store is the keyed record store
type Store interface {
	Query(ctx context.Context, q Query) ([]Record, error)
	// UpdateStatus moves every record matching q to status and returns how many changed
	UpdateStatus(ctx context.Context, q Query, status Status) (int64, error)
	Insert(ctx context.Context, records ...Record) error
	Delete(ctx context.Context, q Query) (int64, error)
	Close(ctx context.Context) error
}
