package remote

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store. It backs tests and single-node setups, and
// can be toggled unavailable to exercise fallback paths.
type Memory struct {
	mu          sync.Mutex
	docs        map[string]map[string]json.RawMessage
	unavailable bool
	writes      int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{docs: map[string]map[string]json.RawMessage{}}
}

// SetUnavailable makes every call fail with ErrUnavailable while down is set.
func (m *Memory) SetUnavailable(down bool) {
	m.mu.Lock()
	m.unavailable = down
	m.mu.Unlock()
}

// Writes returns how many write calls succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) List(ctx context.Context, collection string) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return nil, ErrUnavailable
	}
	out := make([]Doc, 0, len(m.docs[collection]))
	for id, data := range m.docs[collection] {
		out = append(out, Doc{ID: id, Data: append(json.RawMessage(nil), data...)})
	}
	SortDocs(out)
	return out, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return nil, ErrUnavailable
	}
	data, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), data...), nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data json.RawMessage, merge bool) error {
	return m.Commit(ctx, []Op{SetOp(collection, id, data, merge)})
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	return m.Commit(ctx, []Op{DeleteOp(collection, id)})
}

func (m *Memory) Commit(ctx context.Context, ops []Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}

	// Stage on a copy so a failing op leaves the store untouched.
	staged := make(map[string]map[string]json.RawMessage, len(m.docs))
	for c, docs := range m.docs {
		cp := make(map[string]json.RawMessage, len(docs))
		for id, d := range docs {
			cp[id] = d
		}
		staged[c] = cp
	}
	for _, op := range ops {
		coll := staged[op.Collection]
		if coll == nil {
			coll = map[string]json.RawMessage{}
			staged[op.Collection] = coll
		}
		switch op.Kind {
		case OpDelete:
			delete(coll, op.ID)
		case OpSet:
			data := append(json.RawMessage(nil), op.Data...)
			if op.Merge {
				merged, err := MergeObjects(coll[op.ID], op.Data)
				if err != nil {
					return err
				}
				data = merged
			}
			coll[op.ID] = data
		}
	}
	m.docs = staged
	m.writes++
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return ErrUnavailable
	}
	return nil
}

// Disabled is the Store used when no remote is configured.
type Disabled struct{}

func (Disabled) List(context.Context, string) ([]Doc, error) { return nil, ErrUnavailable }
func (Disabled) Get(context.Context, string, string) (json.RawMessage, error) {
	return nil, ErrUnavailable
}
func (Disabled) Set(context.Context, string, string, json.RawMessage, bool) error {
	return ErrUnavailable
}
func (Disabled) Delete(context.Context, string, string) error { return ErrUnavailable }
func (Disabled) Commit(context.Context, []Op) error           { return ErrUnavailable }
func (Disabled) Ping(context.Context) error                   { return ErrUnavailable }
