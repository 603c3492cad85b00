package mysql

import (
	"context"
	"database/sql"
	"time"

	"lotto-server/common/logger"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTxTimeout 单个原子单元的默认超时
const DefaultTxTimeout = 3 * time.Second

// WithTx 在一个事务中执行 fn：fn 返回 nil 则提交，否则回滚
// 同一事务内只能使用 tx，不要再通过 db 发起查询
func WithTx(ctx context.Context, db *sqlx.DB, timeout time.Duration, fn func(tx *sqlx.Tx) error) (err error) {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := db.BeginTxx(txCtx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.WarnCtx(ctx, "tx rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
