package service

import (
	"context"
	"time"

	"lotto-server/common/helper"
	infmysql "lotto-server/internal/infra/mysql"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
)

// Env 服务共享依赖，由启动流程构造一次后注入各服务
// DB 为进程级共享句柄；Redis 可为空
type Env struct {
	DB        *sqlx.DB
	Redis     goredis.UniversalClient
	Clock     helper.Clock
	TxTimeout time.Duration
}

func (e *Env) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e *Env) nowMillis() int64 { return e.now().UnixMilli() }

func (e *Env) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return infmysql.WithTx(ctx, e.DB, e.TxTimeout, fn)
}
