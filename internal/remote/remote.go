// Package remote talks to the shared document store that mirrors the local
// cache. Documents are JSON objects addressed by collection and id.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// Collections and singleton document ids.
const (
	CollectionGrammar        = "grammar"
	CollectionStats          = "stats"
	CollectionLearningStatus = "learningStatus"
	CollectionDailyGoals     = "dailyGoals"

	DocStats          = "userStats"
	DocLearningStatus = "userLearningStatus"
	DocDailyGoal      = "userDailyGoal"
)

var (
	// ErrUnavailable is returned when no remote store is configured or it
	// cannot be reached.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrNotFound is returned by Get for a missing document.
	ErrNotFound = errors.New("document not found")
)

// Doc is a stored document.
type Doc struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// OpKind is the kind of a batched write.
type OpKind string

const (
	OpSet    OpKind = "set"
	OpDelete OpKind = "delete"
)

// Op is one write inside a Commit batch.
type Op struct {
	Kind       OpKind          `json:"kind"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data,omitempty"`
	Merge      bool            `json:"merge,omitempty"`
}

// SetOp builds a set operation.
func SetOp(collection, id string, data json.RawMessage, merge bool) Op {
	return Op{Kind: OpSet, Collection: collection, ID: id, Data: data, Merge: merge}
}

// DeleteOp builds a delete operation.
func DeleteOp(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// Store is a document store. Commit applies all operations or none.
type Store interface {
	List(ctx context.Context, collection string) ([]Doc, error)
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Set(ctx context.Context, collection, id string, data json.RawMessage, merge bool) error
	Delete(ctx context.Context, collection, id string) error
	Commit(ctx context.Context, ops []Op) error
	Ping(ctx context.Context) error
}

// MergeObjects overlays the top-level fields of patch onto base. Both must
// be JSON objects; an empty base is treated as {}.
func MergeObjects(base, patch json.RawMessage) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, err
		}
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// SortDocs orders documents by numeric id, then lexically.
func SortDocs(docs []Doc) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, errA := strconv.Atoi(docs[i].ID)
		b, errB := strconv.Atoi(docs[j].ID)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return docs[i].ID < docs[j].ID
	})
}

func validateOps(ops []Op) error {
	for _, op := range ops {
		if op.Collection == "" || op.ID == "" {
			return errors.New("batch operation needs collection and id")
		}
		switch op.Kind {
		case OpSet:
			if len(op.Data) == 0 {
				return errors.New("set operation needs data")
			}
		case OpDelete:
		default:
			return errors.New("unknown batch operation " + string(op.Kind))
		}
	}
	return nil
}
