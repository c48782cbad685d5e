package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memDoc struct {
	data    json.RawMessage
	fields  map[string]any
	version int64
	updated time.Time
}

// Memory is a process-local Store. Every write bumps a store-wide version
// counter, which is what transactions validate against at commit.
type Memory struct {
	opts options
	hub  *hub

	mu      sync.RWMutex
	colls   map[string]map[string]*memDoc
	version int64
	closed  bool
}

var _ Store = (*Memory)(nil)

func NewMemory(opts ...Option) *Memory {
	return &Memory{
		opts:  buildOptions(opts),
		hub:   newHub(),
		colls: make(map[string]map[string]*memDoc),
	}
}

func encodeDoc(v any) (json.RawMessage, map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, fmt.Errorf("docstore: document must be a JSON object: %w", err)
	}
	return raw, fields, nil
}

func (m *Memory) snapshot(coll, id string) Snapshot {
	d, ok := m.colls[coll][id]
	if !ok {
		return Snapshot{Collection: coll, ID: id}
	}
	return Snapshot{
		Collection: coll, ID: id, Exists: true,
		Data:       append(json.RawMessage(nil), d.data...),
		Version:    d.version,
		UpdateTime: d.updated,
	}
}

func (m *Memory) query(q Query) ([]Snapshot, error) {
	docs := m.colls[q.Collection]
	cands := make([]candidate, 0, len(docs))
	for id, d := range docs {
		cands = append(cands, candidate{snap: m.snapshot(q.Collection, id), fields: d.fields})
	}
	return evaluate(q, cands)
}

// put and del assume m.mu is held for writing.
func (m *Memory) put(coll, id string, raw json.RawMessage, fields map[string]any) {
	docs, ok := m.colls[coll]
	if !ok {
		docs = make(map[string]*memDoc)
		m.colls[coll] = docs
	}
	m.version++
	docs[id] = &memDoc{data: raw, fields: fields, version: m.version, updated: m.opts.now()}
}

func (m *Memory) del(coll, id string) bool {
	if _, ok := m.colls[coll][id]; !ok {
		return false
	}
	delete(m.colls[coll], id)
	m.version++
	return true
}

func (m *Memory) Get(ctx context.Context, coll, id string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return m.snapshot(coll, id), nil
}

func (m *Memory) write(ctx context.Context, coll string, fn func() (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	changed, err := fn()
	m.mu.Unlock()
	if changed {
		m.hub.notify(coll)
	}
	return err
}

func (m *Memory) Set(ctx context.Context, coll, id string, v any) error {
	raw, fields, err := encodeDoc(v)
	if err != nil {
		return err
	}
	return m.write(ctx, coll, func() (bool, error) {
		m.put(coll, id, raw, fields)
		return true, nil
	})
}

func (m *Memory) Create(ctx context.Context, coll, id string, v any) error {
	raw, fields, err := encodeDoc(v)
	if err != nil {
		return err
	}
	return m.write(ctx, coll, func() (bool, error) {
		if _, ok := m.colls[coll][id]; ok {
			return false, ErrAlreadyExists
		}
		m.put(coll, id, raw, fields)
		return true, nil
	})
}

func (m *Memory) Add(ctx context.Context, coll string, v any) (string, error) {
	id := uuid.NewString()
	if err := m.Create(ctx, coll, id, v); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Update(ctx context.Context, coll, id string, fields map[string]any) error {
	norm, err := normalize(fields)
	if err != nil {
		return fmt.Errorf("docstore: encode: %w", err)
	}
	patch, _ := norm.(map[string]any)
	return m.write(ctx, coll, func() (bool, error) {
		d, ok := m.colls[coll][id]
		if !ok {
			return false, ErrNotFound
		}
		merged := make(map[string]any, len(d.fields)+len(fields))
		for k, v := range d.fields {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return false, err
		}
		m.put(coll, id, raw, merged)
		return true, nil
	})
}

func (m *Memory) Delete(ctx context.Context, coll, id string) error {
	return m.write(ctx, coll, func() (bool, error) {
		return m.del(coll, id), nil
	})
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.query(q)
}

func (m *Memory) RunTransaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= m.opts.maxAttempts; attempt++ {
		tx := &memTx{m: m, reads: make(map[docKey]int64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		err := tx.commit()
		if err == nil {
			return nil
		}
		if !errors.Is(err, errRetry) {
			return err
		}
		if attempt < m.opts.maxAttempts {
			if err := backoff(ctx, attempt); err != nil {
				return err
			}
		}
	}
	return ErrConflict
}

func (m *Memory) WatchDoc(ctx context.Context, coll, id string) (*Subscription, error) {
	return newSubscription(ctx, m.hub, coll, func(ctx context.Context) ([]Snapshot, error) {
		s, err := m.Get(ctx, coll, id)
		if err != nil {
			return nil, err
		}
		return []Snapshot{s}, nil
	}), nil
}

func (m *Memory) WatchQuery(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return newSubscription(ctx, m.hub, q.Collection, func(ctx context.Context) ([]Snapshot, error) {
		return m.Query(ctx, q)
	}), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type docKey struct{ coll, id string }

type txQuery struct {
	q      Query
	result []Snapshot
}

type txWrite struct {
	key    docKey
	delete bool
	raw    json.RawMessage
	fields map[string]any
}

type memTx struct {
	m       *Memory
	reads   map[docKey]int64 // 0 means read as missing
	queries []txQuery
	writes  []txWrite
}

func (t *memTx) Get(ctx context.Context, coll, id string) (Snapshot, error) {
	if len(t.writes) > 0 {
		return Snapshot{}, ErrReadAfterWrite
	}
	s, err := t.m.Get(ctx, coll, id)
	if err != nil {
		return Snapshot{}, err
	}
	t.reads[docKey{coll, id}] = s.Version
	return s, nil
}

func (t *memTx) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	if len(t.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	res, err := t.m.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	t.queries = append(t.queries, txQuery{q: q, result: res})
	return res, nil
}

func (t *memTx) Set(ctx context.Context, coll, id string, v any) error {
	raw, fields, err := encodeDoc(v)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, txWrite{key: docKey{coll, id}, raw: raw, fields: fields})
	return nil
}

func (t *memTx) Delete(ctx context.Context, coll, id string) error {
	t.writes = append(t.writes, txWrite{key: docKey{coll, id}, delete: true})
	return nil
}

func sameResult(a, b []Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Version != b[i].Version {
			return false
		}
	}
	return true
}

func (t *memTx) commit() error {
	m := t.m
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	for k, v := range t.reads {
		cur := int64(0)
		if d, ok := m.colls[k.coll][k.id]; ok {
			cur = d.version
		}
		if cur != v {
			m.mu.Unlock()
			return errRetry
		}
	}
	for _, tq := range t.queries {
		res, err := m.query(tq.q)
		if err != nil || !sameResult(res, tq.result) {
			m.mu.Unlock()
			return errRetry
		}
	}
	touched := make(map[string]struct{})
	for _, w := range t.writes {
		if w.delete {
			if m.del(w.key.coll, w.key.id) {
				touched[w.key.coll] = struct{}{}
			}
			continue
		}
		m.put(w.key.coll, w.key.id, w.raw, w.fields)
		touched[w.key.coll] = struct{}{}
	}
	m.mu.Unlock()

	for coll := range touched {
		m.hub.notify(coll)
	}
	return nil
}
