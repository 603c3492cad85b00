// Package testutil 提供基于内存 SQLite 的测试存储，SQL 与 MySQL 保持可移植
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"lotto-server/internal/infra/mysql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sqliteSchema = `
CREATE TABLE accounts (
  id INTEGER PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  bonus NUMERIC NOT NULL DEFAULT 0,
  supervisor_ref TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE bets (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  lottery TEXT NOT NULL,
  time_slot_code TEXT NOT NULL,
  draw_date TEXT NOT NULL,
  wager_lines TEXT NOT NULL,
  total NUMERIC NOT NULL,
  status TEXT NOT NULL,
  prize NUMERIC NOT NULL DEFAULT 0,
  prize_credited_at INTEGER NULL,
  result_id INTEGER NULL,
  settled_at INTEGER NULL,
  trace_id TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE results (
  id INTEGER PRIMARY KEY,
  lottery TEXT NOT NULL,
  time_slot_code TEXT NOT NULL,
  draw_date TEXT NOT NULL,
  numbers TEXT NOT NULL,
  created_by TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE transactions (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  ref_id TEXT NOT NULL DEFAULT '',
  trace_id TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE TABLE idempotency_keys (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  idem_key TEXT NOT NULL,
  purpose TEXT NOT NULL,
  fingerprint TEXT NOT NULL,
  ref TEXT NOT NULL DEFAULT '',
  snapshot TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE (user_id, idem_key)
);
CREATE TABLE webhook_events (
  id INTEGER PRIMARY KEY,
  provider TEXT NOT NULL,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL DEFAULT '',
  charge_id INTEGER NULL,
  payload TEXT NOT NULL,
  received_at INTEGER NOT NULL,
  UNIQUE (provider, event_id)
);
CREATE TABLE pix_charges (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL,
  credited INTEGER NOT NULL DEFAULT 0,
  correlation_id TEXT NOT NULL UNIQUE,
  transaction_id TEXT NOT NULL DEFAULT '',
  paid_at INTEGER NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE manual_settlements (
  id INTEGER PRIMARY KEY,
  bet_id INTEGER NOT NULL,
  result_id INTEGER NOT NULL,
  action TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  prize NUMERIC NOT NULL DEFAULT 0,
  actor TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  UNIQUE (bet_id, action)
);
CREATE TABLE outbox (
  id INTEGER PRIMARY KEY,
  topic TEXT NOT NULL,
  biz_key TEXT NOT NULL,
  payload TEXT NOT NULL,
  status INTEGER NOT NULL DEFAULT 1,
  retry_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE inbox (
  id INTEGER PRIMARY KEY,
  message_id TEXT NOT NULL,
  topic TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE (message_id, topic)
);
`

// NewDB 创建一个独立的内存库并建表
// 单连接：并发测试中的事务会在 database/sql 连接池上排队，由此串行化
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, mysql.ApplySchema(context.Background(), db, splitSchema()))
	return db
}

func splitSchema() []string {
	var out []string
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// SeedAccount 插入一个账户，返回账户 ID
func SeedAccount(t testing.TB, db *sqlx.DB, username, balance, bonus string) int64 {
	t.Helper()
	res, err := db.Exec("INSERT INTO accounts (username, balance, bonus, supervisor_ref, created_at, updated_at) VALUES (?, ?, ?, '', 0, 0)",
		username, balance, bonus)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Balance 读取账户余额与赠金
func Balance(t testing.TB, db *sqlx.DB, userID int64) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	var row struct {
		Balance decimal.Decimal `db:"balance"`
		Bonus   decimal.Decimal `db:"bonus"`
	}
	require.NoError(t, db.Get(&row, "SELECT balance, bonus FROM accounts WHERE id = ?", userID))
	return row.Balance, row.Bonus
}

// Count 执行 COUNT 查询
func Count(t testing.TB, db *sqlx.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, query, args...))
	return n
}
