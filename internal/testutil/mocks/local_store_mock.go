package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockLocalStore is a mock implementation of repository.LocalStore
type MockLocalStore struct {
	mock.Mock
}

func (m *MockLocalStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockLocalStore) Put(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockLocalStore) PutMany(ctx context.Context, values map[string][]byte) error {
	args := m.Called(ctx, values)
	return args.Error(0)
}

func (m *MockLocalStore) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockLocalStore) Keys(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
