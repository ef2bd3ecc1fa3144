package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/vytor/bunpo/internal/remote"
)

// MockSyncQueue is a mock implementation of jobs.SyncQueue
type MockSyncQueue struct {
	mock.Mock
}

func (m *MockSyncQueue) EnqueueWrite(label string, ops []remote.Op) error {
	args := m.Called(label, ops)
	return args.Error(0)
}

func (m *MockSyncQueue) EnqueueReconcile() error {
	args := m.Called()
	return args.Error(0)
}

// Supersede runs fn directly; ordering is not modelled.
func (m *MockSyncQueue) Supersede(fn func() error) error {
	return fn()
}
