package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/tomb.v2"

	"salez/internal/common/logger"
)

// NotifyChannel is the LISTEN/NOTIFY channel fed by the documents trigger.
// Payload format: "<collection>/<id>".
const NotifyChannel = "docstore_changes"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores documents as JSONB rows of one table. Change notifications
// come from a dedicated LISTEN connection owned by a tomb.
type Postgres struct {
	pool *pgxpool.Pool
	opts options
	hub  *hub
	lg   *logger.Logger
	t    tomb.Tomb
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool, lg *logger.Logger, opts ...Option) *Postgres {
	p := &Postgres{pool: pool, opts: buildOptions(opts), hub: newHub(), lg: lg}
	p.t.Go(p.listen)
	return p
}

// Close stops the listener. The pool belongs to the caller.
func (p *Postgres) Close() error {
	p.t.Kill(nil)
	return p.t.Wait()
}

func (p *Postgres) listen() error {
	ctx := p.t.Context(nil)
	for attempt := 1; ; attempt++ {
		err := p.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		p.lg.Error("docstore_listen_failed", err, map[string]any{"attempt": attempt})
		wait := time.Duration(min(attempt, 10)) * time.Second
		select {
		case <-p.t.Dying():
			return nil
		case <-time.After(wait):
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	p.lg.Debug("docstore_listening", map[string]any{"channel": NotifyChannel})
	// Anything may have changed while we were not listening.
	p.hub.notifyAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if coll, _, ok := strings.Cut(n.Payload, "/"); ok {
			p.hub.notify(coll)
		}
	}
}

func getDoc(ctx context.Context, q querier, coll, id string, forUpdate bool) (Snapshot, error) {
	sql := `SELECT data, version, updated_at FROM documents WHERE collection = $1 AND id = $2`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	s := Snapshot{Collection: coll, ID: id}
	var data []byte
	err := q.QueryRow(ctx, sql, coll, id).Scan(&data, &s.Version, &s.UpdateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	s.Exists = true
	s.Data = json.RawMessage(data)
	return s, nil
}

func queryDocs(ctx context.Context, db querier, q Query, forUpdate bool) ([]Snapshot, error) {
	sql, args, err := buildSelect(q, forUpdate)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s := Snapshot{Collection: q.Collection, Exists: true}
		var data []byte
		if err := rows.Scan(&s.ID, &data, &s.Version, &s.UpdateTime); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		s.Data = json.RawMessage(data)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return out, nil
}

const upsertSQL = `
INSERT INTO documents (collection, id, data, version, updated_at)
VALUES ($1, $2, $3::jsonb, 1, now())
ON CONFLICT (collection, id) DO UPDATE
SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()`

func setDoc(ctx context.Context, q querier, coll, id string, v any) error {
	raw, _, err := encodeDoc(v)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, upsertSQL, coll, id, string(raw)); err != nil {
		return fmt.Errorf("set %s/%s: %w", coll, id, err)
	}
	return nil
}

func deleteDoc(ctx context.Context, q querier, coll, id string) error {
	if _, err := q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, coll, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, coll, id string) (Snapshot, error) {
	return getDoc(ctx, p.pool, coll, id, false)
}

func (p *Postgres) Set(ctx context.Context, coll, id string, v any) error {
	return setDoc(ctx, p.pool, coll, id, v)
}

func (p *Postgres) Create(ctx context.Context, coll, id string, v any) error {
	raw, _, err := encodeDoc(v)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `
INSERT INTO documents (collection, id, data, version, updated_at)
VALUES ($1, $2, $3::jsonb, 1, now())
ON CONFLICT (collection, id) DO NOTHING`, coll, id, string(raw))
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", coll, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, coll string, v any) (string, error) {
	id := uuid.NewString()
	if err := p.Create(ctx, coll, id, v); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Update(ctx context.Context, coll, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("docstore: encode: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `
UPDATE documents SET data = data || $3::jsonb, version = version + 1, updated_at = now()
WHERE collection = $1 AND id = $2`, coll, id, string(raw))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, coll, id string) error {
	return deleteDoc(ctx, p.pool, coll, id)
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	return queryDocs(ctx, p.pool, q, false)
}

// retryable reports serialization failures, deadlocks and unique races on
// concurrent first inserts.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
	}
	return false
}

// txOptions makes a read set behave like the memory driver's commit check:
// a concurrent insert into a queried range (a phantom) or a write to a read
// document aborts one side with 40001, and RunTransaction re-runs it.
var txOptions = pgx.TxOptions{IsoLevel: pgx.Serializable}

// RunTransaction runs fn in a SERIALIZABLE transaction with FOR UPDATE reads
// and re-runs the whole function on serialization failures.
func (p *Postgres) RunTransaction(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= p.opts.maxAttempts; attempt++ {
		err := p.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		p.lg.Debug("docstore_tx_retry", map[string]any{"attempt": attempt, "error": err.Error()})
		if attempt < p.opts.maxAttempts {
			if err := backoff(ctx, attempt); err != nil {
				return err
			}
		}
	}
	return ErrConflict
}

func (p *Postgres) runOnce(ctx context.Context, fn TxFunc) error {
	tx, err := p.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) WatchDoc(ctx context.Context, coll, id string) (*Subscription, error) {
	return newSubscription(ctx, p.hub, coll, func(ctx context.Context) ([]Snapshot, error) {
		s, err := p.Get(ctx, coll, id)
		if err != nil {
			return nil, err
		}
		return []Snapshot{s}, nil
	}), nil
}

func (p *Postgres) WatchQuery(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return newSubscription(ctx, p.hub, q.Collection, func(ctx context.Context) ([]Snapshot, error) {
		return p.Query(ctx, q)
	}), nil
}

type pgTx struct {
	tx    pgx.Tx
	wrote bool
}

func (t *pgTx) Get(ctx context.Context, coll, id string) (Snapshot, error) {
	if t.wrote {
		return Snapshot{}, ErrReadAfterWrite
	}
	return getDoc(ctx, t.tx, coll, id, true)
}

func (t *pgTx) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	if t.wrote {
		return nil, ErrReadAfterWrite
	}
	return queryDocs(ctx, t.tx, q, true)
}

func (t *pgTx) Set(ctx context.Context, coll, id string, v any) error {
	t.wrote = true
	return setDoc(ctx, t.tx, coll, id, v)
}

func (t *pgTx) Delete(ctx context.Context, coll, id string) error {
	t.wrote = true
	return deleteDoc(ctx, t.tx, coll, id)
}
