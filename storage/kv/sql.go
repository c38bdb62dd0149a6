// Package kv holds the durable key/value backends of the session store.
package kv

import (
	"context"
	"encoding/hex"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/blake2b"

	"github.com/trezcool/mothercare/core/session"
)

// HashNamespace hides the browser id behind a BLAKE2b-256 digest.
func HashNamespace(ns string) string {
	sum := blake2b.Sum256([]byte(ns))
	return hex.EncodeToString(sum[:])
}

// SQL keeps entries in the session_entries table (Postgres or SQLite).
type SQL struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ session.KV = (*SQL)(nil)

func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type entry struct {
	Key   string      `db:"key"`
	Value null.String `db:"value"`
}

func (s *SQL) Get(ctx context.Context, ns string, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT key, value FROM session_entries WHERE namespace = ? AND key IN (?)`, HashNamespace(ns), keys)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var entries []entry
	if err = s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting session entries")
	}
	for _, e := range entries {
		if e.Value.Valid {
			out[e.Key] = e.Value.String
		}
	}
	return out, nil
}

// Set upserts every entry in one transaction.
func (s *SQL) Set(ctx context.Context, ns string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := tx.Rebind(`INSERT INTO session_entries (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	h := HashNamespace(ns)
	now := s.now()
	for _, k := range keys {
		if _, err = tx.ExecContext(ctx, q, h, k, null.StringFrom(entries[k]), now); err != nil {
			return errors.Wrapf(err, "writing session entry %q", k)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing session entries")
	}
	return nil
}

// Delete removes keys, or the whole namespace when no key is given.
func (s *SQL) Delete(ctx context.Context, ns string, keys ...string) error {
	var (
		query string
		args  []interface{}
		err   error
	)
	if len(keys) == 0 {
		query, args = `DELETE FROM session_entries WHERE namespace = ?`, []interface{}{HashNamespace(ns)}
	} else {
		query, args, err = sqlx.In(`DELETE FROM session_entries WHERE namespace = ? AND key IN (?)`, HashNamespace(ns), keys)
		if err != nil {
			return errors.Wrap(err, "building query")
		}
	}
	if _, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting session entries")
	}
	return nil
}

// NamespaceSummary describes one stored browser session.
type NamespaceSummary struct {
	Namespace string      `db:"namespace"`
	User      null.String `db:"user_value"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// Namespaces lists the stored sessions, most recent first.
func (s *SQL) Namespaces(ctx context.Context) ([]NamespaceSummary, error) {
	var out []NamespaceSummary
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT t.namespace, u.value AS user_value, t.updated_at
		FROM session_entries t
		LEFT JOIN session_entries u ON u.namespace = t.namespace AND u.key = ?
		WHERE t.key = ?
		ORDER BY t.updated_at DESC`), session.KeyUser, session.KeyToken)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	return out, nil
}

// DeleteHashed removes the session stored under an already hashed namespace, as listed by Namespaces.
func (s *SQL) DeleteHashed(ctx context.Context, hashed string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM session_entries WHERE namespace = ?`), hashed)
	if err != nil {
		return 0, errors.Wrap(err, "deleting session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting session")
	}
	return n, nil
}
