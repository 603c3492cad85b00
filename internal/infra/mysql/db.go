package mysql

import (
	"context"
	"time"

	"lotto-server/common/logger"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Options 连接池参数
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open 创建进程级共享的 *sqlx.DB 句柄
// 生命周期：启动时创建一次，通过构造函数注入到各服务，退出时 Close
func Open(ctx context.Context, opt Options) (*sqlx.DB, error) {
	cfg, err := driver.ParseDSN(opt.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	// 会话级超时，降低锁等待时长
	cfg.Params["innodb_lock_wait_timeout"] = "5"

	db, err := sqlx.ConnectContext(ctx, "mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "connect mysql")
	}

	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxLifetime <= 0 {
		opt.ConnMaxLifetime = 2 * time.Minute
	}
	db.SetConnMaxLifetime(opt.ConnMaxLifetime)
	db.SetConnMaxIdleTime(time.Minute)

	logger.Info("mysql connected",
		zap.String("addr", cfg.Addr),
		zap.String("db", cfg.DBName),
		zap.Int("max_open", opt.MaxOpenConns))
	return db, nil
}
