package services

import (
	"context"
	"fmt"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/repository"
)

// Notice levels.
const (
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

const defaultNoticeKeep = 200

// NoticeService collects warnings raised by background work so the client
// can show them after the request that caused them has returned.
type NoticeService interface {
	ReportFailure(ctx context.Context, source string, err error)
	Add(ctx context.Context, level, source, message string)
	List(ctx context.Context, afterID int64, limit int) ([]repository.Notice, error)
}

type noticeService struct {
	repo repository.NoticeRepository
	keep int
}

// NewNoticeService creates a NoticeService that retains the newest keep
// notices. keep <= 0 uses the default.
func NewNoticeService(repo repository.NoticeRepository, keep int) NoticeService {
	if keep <= 0 {
		keep = defaultNoticeKeep
	}
	return &noticeService{repo: repo, keep: keep}
}

// ReportFailure records a failed remote write. The local change it belongs
// to is kept.
func (s *noticeService) ReportFailure(ctx context.Context, source string, err error) {
	logger.FromContext(ctx).WithPrefix("notices").Warn("remote write failed: source=%s err=%v", source, err)
	s.Add(ctx, NoticeWarning, source, fmt.Sprintf("Changes were saved on this device but could not be synced (%s).", source))
}

func (s *noticeService) Add(ctx context.Context, level, source, message string) {
	log := logger.FromContext(ctx).WithPrefix("notices")
	if _, err := s.repo.Insert(ctx, repository.Notice{Level: level, Source: source, Message: message}); err != nil {
		log.Error("failed to store notice: %v", err)
		return
	}
	if err := s.repo.Prune(ctx, s.keep); err != nil {
		log.Warn("failed to prune notices: %v", err)
	}
}

func (s *noticeService) List(ctx context.Context, afterID int64, limit int) ([]repository.Notice, error) {
	notices, err := s.repo.After(ctx, afterID, limit)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list notices: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return notices, nil
}
