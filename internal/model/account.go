package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const TableAccounts = "accounts"

// Account 对应 accounts 表
// balance: 可提现余额；bonus: 赠金（受限资金），两者任何时刻均不得为负
type Account struct {
	ID            int64           `db:"id"`             // 用户ID
	Username      string          `db:"username"`       // 用户名
	Balance       decimal.Decimal `db:"balance"`        // 余额
	Bonus         decimal.Decimal `db:"bonus"`          // 赠金
	SupervisorRef string          `db:"supervisor_ref"` // 上级（佣金归属）
	CreatedAt     int64           `db:"created_at"`
	UpdatedAt     int64           `db:"updated_at"`
}

// Insert 新增账户，返回自增 ID
func (a *Account) Insert(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO accounts (username, balance, bonus, supervisor_ref, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, a.Username, a.Balance.StringFixed(2), a.Bonus.StringFixed(2), a.SupervisorRef, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const accountSelect = "SELECT id, username, balance, bonus, supervisor_ref, created_at, updated_at FROM accounts WHERE id = ? LIMIT 1"

// GetAccount 按 ID 读取账户（普通读，不加锁）
func GetAccount(ctx context.Context, q sqlx.QueryerContext, id int64) (*Account, error) {
	var a Account
	if err := sqlx.GetContext(ctx, q, &a, accountSelect, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountForUpdate 事务内当前读并锁定账户行
// MySQL 使用 FOR UPDATE，绕开 REPEATABLE READ 的快照；SQLite 单写者，无行锁语法
func GetAccountForUpdate(ctx context.Context, q sqlx.ExtContext, id int64) (*Account, error) {
	sqlStr := accountSelect
	if q.DriverName() == "mysql" {
		sqlStr += " FOR UPDATE"
	}
	var a Account
	if err := sqlx.GetContext(ctx, q, &a, sqlStr, id); err != nil {
		return nil, err
	}
	return &a, nil
}
