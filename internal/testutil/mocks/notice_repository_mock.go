package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/bunpo/internal/repository"
)

// MockNoticeRepository is a mock implementation of repository.NoticeRepository
type MockNoticeRepository struct {
	mock.Mock
}

func (m *MockNoticeRepository) Insert(ctx context.Context, n repository.Notice) (int64, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNoticeRepository) After(ctx context.Context, afterID int64, limit int) ([]repository.Notice, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.Notice), args.Error(1)
}

func (m *MockNoticeRepository) Prune(ctx context.Context, keep int) error {
	args := m.Called(ctx, keep)
	return args.Error(0)
}
