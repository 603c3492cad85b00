package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	infmysql "lotto-server/internal/infra/mysql"
	infrds "lotto-server/internal/infra/redis"
	"lotto-server/internal/model"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// 进行中锁 TTL：覆盖一次下注事务的最长耗时
	idemLockTTL = 15 * time.Second
	// 结果缓存 TTL：覆盖客户端短时重试窗口，数据库记录仍是最终依据
	idemResultTTL = 10 * time.Minute
)

// IdemStatus 幂等执行结果
type IdemStatus int

const (
	IdemCreated  IdemStatus = iota // 首次执行
	IdemReplayed                   // 重放首次结果，无副作用
)

// IdemRequest 一次幂等请求
type IdemRequest struct {
	UserID      int64
	Key         string // 客户端提供的 Idempotency-Key，为空则不做幂等
	Purpose     string
	Fingerprint string
}

// IdempotencyGuard 基于 (user_id, idem_key) 唯一键的幂等执行器
type IdempotencyGuard struct {
	env *Env
}

func NewIdempotencyGuard(env *Env) *IdempotencyGuard { return &IdempotencyGuard{env: env} }

// Fingerprint 计算请求指纹：对规范化后的请求结构做 JSON 序列化再取 sha256
// 调用方负责传入只包含语义字段、字段顺序固定的结构体
func Fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type idemCached struct {
	Fingerprint string          `json:"fp"`
	Snapshot    json.RawMessage `json:"snapshot"`
}

var errIdemKeyExists = errors.New("idempotency key exists")

// RunIdempotent 在一个事务内执行 op：
//   - 幂等键首次出现：插入键 → 执行 op → 写入结果快照，与业务写入同一事务提交
//   - 键已存在且指纹一致：返回首次快照（IdemReplayed）
//   - 键已存在但指纹不同：ErrFingerprintMismatch
//
// 并发插入同一键时唯一约束保证只有一个成功，其余进入重放分支
// op 返回业务结果与业务引用（如注单号）
func RunIdempotent[T any](ctx context.Context, g *IdempotencyGuard, req IdemRequest, op func(ctx context.Context, tx *sqlx.Tx) (T, string, error)) (T, IdemStatus, error) {
	var zero T
	if req.Key == "" {
		var out T
		err := g.env.withTx(ctx, func(tx *sqlx.Tx) error {
			var err error
			out, _, err = op(ctx, tx)
			return err
		})
		if err != nil {
			return zero, IdemCreated, err
		}
		return out, IdemCreated, nil
	}

	rdb := g.env.Redis
	if rdb != nil {
		if out, ok, err := replayFromCache[T](ctx, rdb, req); ok || err != nil {
			return out, IdemReplayed, err
		}
		lockKey := infrds.IdemLockKey(req.UserID, req.Key)
		token := randomToken()
		acquired, err := rdb.SetNX(ctx, lockKey, token, idemLockTTL).Result()
		if err != nil {
			logger.WarnCtx(ctx, "idem lock unavailable, falling back to db", zap.Error(err))
		} else if !acquired {
			return zero, IdemReplayed, ErrDuplicateInFlight
		} else {
			defer func() {
				if err := infrds.ReleaseLock(context.WithoutCancel(ctx), rdb, lockKey, token); err != nil {
					logger.WarnCtx(ctx, "idem lock release failed", zap.Error(err))
				}
			}()
		}
	}

	var (
		out      T
		snapshot []byte
	)
	err := g.env.withTx(ctx, func(tx *sqlx.Tx) error {
		key := &model.IdempotencyKey{
			UserID:      req.UserID,
			IdemKey:     req.Key,
			Purpose:     req.Purpose,
			Fingerprint: req.Fingerprint,
			Snapshot:    "",
			CreatedAt:   g.env.nowMillis(),
		}
		keyID, err := key.Insert(ctx, tx)
		if err != nil {
			if infmysql.IsDuplicateKey(err) {
				return errIdemKeyExists
			}
			return internal("insert idempotency key", err)
		}

		var ref string
		out, ref, err = op(ctx, tx)
		if err != nil {
			return err
		}
		if snapshot, err = json.Marshal(out); err != nil {
			return internal("marshal idempotency snapshot", err)
		}
		if err := model.CompleteIdempotencyKey(ctx, tx, keyID, ref, string(snapshot)); err != nil {
			return internal("complete idempotency key", err)
		}
		return nil
	})

	switch {
	case errors.Is(err, errIdemKeyExists):
		return replayFromStore[T](ctx, g.env, req)
	case err != nil:
		return zero, IdemCreated, err
	}

	cacheResult(ctx, rdb, req, snapshot)
	return out, IdemCreated, nil
}

func replayFromStore[T any](ctx context.Context, env *Env, req IdemRequest) (T, IdemStatus, error) {
	var zero T
	row, err := model.GetIdempotencyKey(ctx, env.DB, req.UserID, req.Key)
	if err != nil {
		if helper.IsNoRows(err) {
			// 首个请求已回滚，客户端可重试
			return zero, IdemReplayed, ErrDuplicateInFlight
		}
		return zero, IdemReplayed, internal("load idempotency key", err)
	}
	if row.Fingerprint != req.Fingerprint {
		return zero, IdemReplayed, ErrFingerprintMismatch
	}
	if row.Snapshot == "" {
		return zero, IdemReplayed, ErrDuplicateInFlight
	}
	var out T
	if err := json.Unmarshal([]byte(row.Snapshot), &out); err != nil {
		return zero, IdemReplayed, internal("decode idempotency snapshot", err)
	}
	cacheResult(ctx, env.Redis, req, []byte(row.Snapshot))
	return out, IdemReplayed, nil
}

// replayFromCache 命中缓存时返回 ok=true；缓存不可用或未命中时 ok=false 且 err=nil
func replayFromCache[T any](ctx context.Context, rdb goredis.Cmdable, req IdemRequest) (T, bool, error) {
	var zero T
	bs, err := rdb.Get(ctx, infrds.IdemResultKey(req.UserID, req.Key)).Bytes()
	if err != nil || len(bs) == 0 {
		return zero, false, nil
	}
	var c idemCached
	if err := json.Unmarshal(bs, &c); err != nil {
		return zero, false, nil
	}
	if c.Fingerprint != req.Fingerprint {
		return zero, true, ErrFingerprintMismatch
	}
	var out T
	if err := json.Unmarshal(c.Snapshot, &out); err != nil {
		return zero, false, nil
	}
	return out, true, nil
}

func cacheResult(ctx context.Context, rdb goredis.Cmdable, req IdemRequest, snapshot []byte) {
	if rdb == nil || len(snapshot) == 0 {
		return
	}
	b, err := json.Marshal(idemCached{Fingerprint: req.Fingerprint, Snapshot: snapshot})
	if err != nil {
		return
	}
	if err := rdb.Set(ctx, infrds.IdemResultKey(req.UserID, req.Key), b, idemResultTTL).Err(); err != nil {
		logger.WarnCtx(ctx, "idem result cache failed", zap.Error(err))
	}
}

func randomToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
