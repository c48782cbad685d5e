// Package docstore is a small document database contract: collections of JSON
// documents with compound queries, optimistic transactions and push-based
// change subscriptions. Two drivers exist: an in-process memory store and a
// postgres JSONB store.
package docstore

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"regexp"
	"time"
)

type Op string

const (
	OpEq            Op = "=="
	OpLt            Op = "<"
	OpLte           Op = "<="
	OpGt            Op = ">"
	OpGte           Op = ">="
	OpArrayContains Op = "array-contains"
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpLt, OpLte, OpGt, OpGte, OpArrayContains:
		return true
	}
	return false
}

// Filter compares one top-level document field against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string // documents without this field are excluded
	Desc       bool
	Limit      int
}

func From(collection string) Query { return Query{Collection: collection} }

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, desc bool) Query {
	q.OrderBy, q.Desc = field, desc
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func (q Query) validate() error {
	if q.Collection == "" {
		return ErrInvalidQuery
	}
	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) || !f.Op.valid() {
			return ErrInvalidQuery
		}
	}
	if q.OrderBy != "" && !fieldName.MatchString(q.OrderBy) {
		return ErrInvalidQuery
	}
	if q.Limit < 0 {
		return ErrInvalidQuery
	}
	return nil
}

// Snapshot is the state of one document at read time.
type Snapshot struct {
	Collection string
	ID         string
	Exists     bool
	Data       json.RawMessage
	Version    int64
	UpdateTime time.Time
}

// DataTo decodes the document into v. Values implementing Validate() error are
// validated after decoding; any failure is a *DecodeError.
func (s Snapshot) DataTo(v any) error {
	if !s.Exists {
		return ErrNotFound
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return &DecodeError{Collection: s.Collection, ID: s.ID, Err: err}
	}
	if val, ok := v.(interface{ Validate() error }); ok {
		if err := val.Validate(); err != nil {
			return &DecodeError{Collection: s.Collection, ID: s.ID, Err: err}
		}
	}
	return nil
}

// Tx is the view of the store inside RunTransaction. All reads must come
// before the first write.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	Set(ctx context.Context, collection, id string, v any) error
	Delete(ctx context.Context, collection, id string) error
}

type TxFunc func(ctx context.Context, tx Tx) error

type Store interface {
	// Get returns Exists=false and a nil error for a missing document.
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Set(ctx context.Context, collection, id string, v any) error
	Create(ctx context.Context, collection, id string, v any) error
	Add(ctx context.Context, collection string, v any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete of a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)

	// RunTransaction re-runs fn when the commit loses a race, up to the
	// configured attempts; then it returns ErrConflict. Errors returned by fn
	// abort the transaction and are returned unchanged.
	RunTransaction(ctx context.Context, fn TxFunc) error

	WatchDoc(ctx context.Context, collection, id string) (*Subscription, error)
	WatchQuery(ctx context.Context, q Query) (*Subscription, error)

	Close() error
}

type options struct {
	maxAttempts int
	now         func() time.Time
}

type Option func(*options)

// WithMaxAttempts bounds transaction re-runs. Default 5.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{maxAttempts: 5, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func backoff(ctx context.Context, attempt int) error {
	d := time.Duration(attempt) * 2 * time.Millisecond
	if d > 50*time.Millisecond {
		d = 50 * time.Millisecond
	}
	d += time.Duration(rand.Int64N(int64(time.Millisecond)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// normalize turns v into its JSON value form (map[string]any, []any, float64,
// string, bool, nil) so that stored data and filter values compare alike.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
