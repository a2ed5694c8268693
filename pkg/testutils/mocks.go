package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/walteh/drsholding/pkg/remote"
	"github.com/walteh/drsholding/pkg/state"
)

// MockCatalog is a mock.Mock double for remote.Catalog
type MockCatalog struct {
	mock.Mock
}

var _ remote.Catalog = (*MockCatalog)(nil)

func (m *MockCatalog) ResolveExternalID(ctx context.Context, externalID string) (*remote.SearchResult, error) {
	args := m.Called(ctx, externalID)
	res, _ := args.Get(0).(*remote.SearchResult)
	return res, args.Error(1)
}

func (m *MockCatalog) ListHoldings(ctx context.Context, recordID string) (*remote.HoldingList, error) {
	args := m.Called(ctx, recordID)
	res, _ := args.Get(0).(*remote.HoldingList)
	return res, args.Error(1)
}

func (m *MockCatalog) GetHolding(ctx context.Context, recordID, holdingID string) (*remote.Holding, error) {
	args := m.Called(ctx, recordID, holdingID)
	res, _ := args.Get(0).(*remote.Holding)
	return res, args.Error(1)
}

func (m *MockCatalog) PutHolding(ctx context.Context, recordID, holdingID string, body []byte) error {
	args := m.Called(ctx, recordID, holdingID, body)
	return args.Error(0)
}

// MockStore is a mock.Mock double for state.Store
type MockStore struct {
	mock.Mock
}

var _ state.Store = (*MockStore)(nil)

func (m *MockStore) Query(ctx context.Context, q state.Query) ([]state.Record, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).([]state.Record)
	return res, args.Error(1)
}

func (m *MockStore) UpdateStatus(ctx context.Context, q state.Query, status state.Status) (int64, error) {
	args := m.Called(ctx, q, status)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockStore) Insert(ctx context.Context, records ...state.Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, q state.Query) (int64, error) {
	args := m.Called(ctx, q)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockStore) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDropbox is a mock.Mock double for remote.Dropbox
type MockDropbox struct {
	mock.Mock
}

var _ remote.Dropbox = (*MockDropbox)(nil)

func (m *MockDropbox) Put(ctx context.Context, localPath, remotePath string) error {
	args := m.Called(ctx, localPath, remotePath)
	return args.Error(0)
}

func (m *MockDropbox) Target() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDropbox) Close() error {
	args := m.Called()
	return args.Error(0)
}
