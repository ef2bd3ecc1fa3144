package repository

import (
	"context"
	"time"
)

// Keys of the local cache. Each holds one JSON document.
const (
	KeyGrammar           = "jlptGrammarData"
	KeyStats             = "grammarStats"
	KeyLearningStatus    = "learningStatus"
	KeyDailyGoal         = "dailyGoal"
	KeyQuickLearnSession = "quickLearnSession"
	KeyPairMatchState    = "pairMatchGameState"
)

// AllKeys lists every key the application writes.
var AllKeys = []string{
	KeyGrammar,
	KeyStats,
	KeyLearningStatus,
	KeyDailyGoal,
	KeyQuickLearnSession,
	KeyPairMatchState,
}

// LocalStore is the client-local key-value cache
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	// PutMany writes all values in one transaction.
	PutMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}

// Notice is a warning surfaced to the user.
type Notice struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NoticeRepository stores warnings raised by background work
type NoticeRepository interface {
	Insert(ctx context.Context, n Notice) (int64, error)
	After(ctx context.Context, afterID int64, limit int) ([]Notice, error)
	Prune(ctx context.Context, keep int) error
}
