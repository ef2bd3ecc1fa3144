package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/bunpo/internal/remote"
)

// MockRemoteStore is a mock implementation of remote.Store
type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) List(ctx context.Context, collection string) ([]remote.Doc, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]remote.Doc), args.Error(1)
}

func (m *MockRemoteStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockRemoteStore) Set(ctx context.Context, collection, id string, data json.RawMessage, merge bool) error {
	args := m.Called(ctx, collection, id, data, merge)
	return args.Error(0)
}

func (m *MockRemoteStore) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

func (m *MockRemoteStore) Commit(ctx context.Context, ops []remote.Op) error {
	args := m.Called(ctx, ops)
	return args.Error(0)
}

func (m *MockRemoteStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
