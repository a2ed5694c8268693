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

package state

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/walteh/drsholding/pkg/failure"
)

// MongoOptions locates the shared collection
type MongoOptions struct {
	URL        string
	Database   string
	Collection string
}

// 🍃 MongoStore is the production Store
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects, pings and makes sure the lookup index exists
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.URL == "" {
		return nil, errors.New("mongo url is required")
	}
	if opts.Database == "" || opts.Collection == "" {
		return nil, errors.New("mongo database and collection are required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URL))
	if err != nil {
		return nil, errors.Errorf("connecting to mongo: %w: %w", failure.ErrStore, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Errorf("pinging mongo: %w: %w", failure.ErrStore, err)
	}

	s := &MongoStore{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
		now:    time.Now,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Str("database", opts.Database).Str("collection", opts.Collection).Msg("connected to mongo")
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: FieldExternalID, Value: 1}, {Key: FieldStatus, Value: 1}},
	})
	if err != nil {
		return errors.Errorf("creating index: %w: %w", failure.ErrStore, err)
	}
	return nil
}

func (q Query) filter() bson.M {
	f := bson.M{}
	if q.ExternalID != "" {
		f[FieldExternalID] = q.ExternalID
	}
	if q.DirectoryID != "" {
		f[FieldDirectoryID] = q.DirectoryID
	}
	if q.Status != "" {
		f[FieldStatus] = string(q.Status)
	}
	return f
}

func statusUpdate(status Status, now time.Time) bson.M {
	set := bson.M{
		FieldStatus:           string(status),
		FieldLastModifiedDate: now,
	}
	if status == StatusDropboxSubmitted {
		set[FieldDropboxDate] = now
	}
	return bson.M{"$set": set}
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]Record, error) {
	cur, err := s.coll.Find(ctx, q.filter())
	if err != nil {
		return nil, errors.Errorf("querying records: %w: %w", failure.ErrStore, err)
	}
	defer cur.Close(ctx)

	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Errorf("decoding records: %w: %w", failure.ErrStore, err)
	}
	return out, nil
}

func (s *MongoStore) UpdateStatus(ctx context.Context, q Query, status Status) (int64, error) {
	if q.IsEmpty() {
		return 0, errors.Errorf("updating status: %w: refusing unconstrained update", failure.ErrStore)
	}
	res, err := s.coll.UpdateMany(ctx, q.filter(), statusUpdate(status, s.now().UTC()))
	if err != nil {
		return 0, errors.Errorf("updating status: %w: %w", failure.ErrStore, err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) Insert(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(records))
	now := s.now().UTC()
	for _, r := range records {
		if r.InsertionDate.IsZero() {
			r.InsertionDate = now
		}
		if r.LastModifiedDate.IsZero() {
			r.LastModifiedDate = now
		}
		docs = append(docs, r)
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errors.Errorf("inserting records: %w: %w", failure.ErrStore, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, q Query) (int64, error) {
	if q.IsEmpty() {
		return 0, errors.Errorf("deleting records: %w: refusing unconstrained delete", failure.ErrStore)
	}
	res, err := s.coll.DeleteMany(ctx, q.filter())
	if err != nil {
		return 0, errors.Errorf("deleting records: %w: %w", failure.ErrStore, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return errors.Errorf("disconnecting from mongo: %w", err)
	}
	return nil
}
