package kv

import (
	"context"
	"database/sql"
	"os"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mothercare/core"
	"github.com/trezcool/mothercare/core/session"
	"github.com/trezcool/mothercare/storage/database"
)

const user = `{"id":1,"username":"admin","role":{"name":"Admin"}}`

// checkKV runs the behaviour every backend shares.
func checkKV(t *testing.T, store session.KV) {
	ctx := context.Background()

	got, err := store.Get(ctx, "browser-a", session.KeyToken, session.KeyUser)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Set(ctx, "browser-a", map[string]string{session.KeyToken: "tok-1", session.KeyUser: user}))
	require.NoError(t, store.Set(ctx, "browser-b", map[string]string{session.KeyToken: "tok-b"}))

	got, err = store.Get(ctx, "browser-a", session.KeyToken, session.KeyUser)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{session.KeyToken: "tok-1", session.KeyUser: user}, got)

	// overwrite
	require.NoError(t, store.Set(ctx, "browser-a", map[string]string{session.KeyToken: "tok-2", session.KeyUser: user}))
	got, err = store.Get(ctx, "browser-a", session.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{session.KeyToken: "tok-2"}, got)

	require.NoError(t, store.Delete(ctx, "browser-a", session.KeyToken, session.KeyUser))
	require.NoError(t, store.Delete(ctx, "browser-a", session.KeyToken, session.KeyUser))
	got, err = store.Get(ctx, "browser-a", session.KeyToken, session.KeyUser)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.Get(ctx, "browser-b", session.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{session.KeyToken: "tok-b"}, got)

	require.NoError(t, store.Delete(ctx, "browser-b"))
	got, err = store.Get(ctx, "browser-b", session.KeyToken)
	require.NoError(t, err)
	assert.Empty(t, got)

	// through the session store
	st, err := session.NewStore(store, "browser-c")
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, "tok-c", session.UserRecord(user)))
	sess, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-c", sess.Token)
	assert.Equal(t, user, sess.User.String())
	require.NoError(t, st.Clear(ctx))
}

func TestMemory(t *testing.T) {
	checkKV(t, session.NewMemoryKV())
}

func TestHashNamespace(t *testing.T) {
	h := HashNamespace("browser-a")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashNamespace("browser-a"))
	assert.NotEqual(t, h, HashNamespace("browser-b"))
	assert.NotContains(t, h, "browser")
}

func openSQLite(t *testing.T) *sqlx.DB {
	conf := &core.Config{Session: core.SessionConfig{Backend: core.SessionBackendSQLite, DSN: ":memory:"}}
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func TestSQL_SQLite(t *testing.T) {
	checkKV(t, NewSQL(openSQLite(t)))
}

func TestSQL_Namespaces(t *testing.T) {
	ctx := context.Background()
	store := NewSQL(openSQLite(t))
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	require.NoError(t, store.Set(ctx, "browser-a", map[string]string{session.KeyToken: "tok-a", session.KeyUser: user}))
	require.NoError(t, store.Set(ctx, "browser-b", map[string]string{session.KeyToken: "tok-b"}))

	list, err := store.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, HashNamespace("browser-b"), list[0].Namespace)
	assert.False(t, list[0].User.Valid)
	assert.Equal(t, HashNamespace("browser-a"), list[1].Namespace)
	assert.Equal(t, user, list[1].User.String)

	n, err := store.DeleteHashed(ctx, HashNamespace("browser-a"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.Get(ctx, "browser-a", session.KeyToken)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func newMock(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewSQL(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestSQL_SetIsTransactional(t *testing.T) {
	store, mock := newMock(t)
	h := HashNamespace("browser-a")
	insert := regexp.QuoteMeta(`INSERT INTO session_entries (namespace, key, value, updated_at) VALUES ($1, $2, $3, $4)`)

	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs(h, session.KeyToken, "tok", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(h, session.KeyUser, user, sqlmock.AnyArg()).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.Set(context.Background(), "browser-a", map[string]string{session.KeyUser: user, session.KeyToken: "tok"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_SetCommits(t *testing.T) {
	store, mock := newMock(t)
	h := HashNamespace("browser-a")
	insert := regexp.QuoteMeta(`INSERT INTO session_entries`)

	mock.ExpectBegin()
	mock.ExpectExec(insert).WithArgs(h, session.KeyToken, "tok", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(h, session.KeyUser, user, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Set(context.Background(), "browser-a", map[string]string{session.KeyToken: "tok", session.KeyUser: user}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_GetAndDelete(t *testing.T) {
	store, mock := newMock(t)
	h := HashNamespace("browser-a")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key, value FROM session_entries WHERE namespace = $1 AND key IN ($2, $3)`)).
		WithArgs(h, session.KeyToken, session.KeyUser).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow(session.KeyToken, "tok").AddRow(session.KeyUser, nil))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_entries WHERE namespace = $1 AND key IN ($2, $3)`)).
		WithArgs(h, session.KeyToken, session.KeyUser).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_entries WHERE namespace = $1`)).
		WithArgs(h).
		WillReturnError(sql.ErrConnDone)

	ctx := context.Background()
	got, err := store.Get(ctx, "browser-a", session.KeyToken, session.KeyUser)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{session.KeyToken: "tok"}, got)

	require.NoError(t, store.Delete(ctx, "browser-a", session.KeyToken, session.KeyUser))
	assert.Error(t, store.Delete(ctx, "browser-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_BackendErrorReachesStore(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(`SELECT key, value FROM session_entries`).WillReturnError(sql.ErrConnDone)

	st, err := session.NewStore(store, "browser-a")
	require.NoError(t, err)
	_, err = st.Load(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedis needs a live server: MOTHERCARE_TEST_REDIS_ADDR=localhost:6379.
func TestRedis(t *testing.T) {
	addr := os.Getenv("MOTHERCARE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MOTHERCARE_TEST_REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("MOTHERCARE_TEST_REDIS_DB"))
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedis(rdb)
	store.prefix = "mothercare:test:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":"
	checkKV(t, store)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "browser-z", map[string]string{session.KeyToken: "tok-z", session.KeyUser: user}))
	list, err := store.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, HashNamespace("browser-z"), list[0].Namespace)
	assert.Equal(t, user, list[0].User.String)

	n, err := store.DeleteHashed(ctx, list[0].Namespace)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := Open(ctx, &core.Config{})
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryKV{}, store)
	assert.NoError(t, closeFn())

	conf := &core.Config{Session: core.SessionConfig{Backend: core.SessionBackendSQLite, DSN: ":memory:"}}
	store, closeFn, err = Open(ctx, conf)
	require.NoError(t, err)
	assert.IsType(t, &SQL{}, store)
	checkKV(t, store)
	assert.NoError(t, closeFn())

	_, _, err = Open(ctx, &core.Config{Session: core.SessionConfig{Backend: "etcd"}})
	assert.EqualError(t, err, `unknown session backend "etcd"`)

	_, _, err = Open(ctx, &core.Config{Session: core.SessionConfig{Backend: core.SessionBackendPostgres}})
	assert.EqualError(t, err, "session.dsn is required")
}
