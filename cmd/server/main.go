package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	"lotto-server/internal/auth"
	"lotto-server/internal/config"
	"lotto-server/internal/controller/api"
	infmysql "lotto-server/internal/infra/mysql"
	infrds "lotto-server/internal/infra/redis"
	"lotto-server/internal/service"
	"lotto-server/internal/worker"
	"lotto-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env 仅用于本地开发，缺失时忽略
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	config.SetCurrent(cfg)

	logger.InitLogger("lotto-server")
	defer logger.Sync()
	logger.SetLevel(cfg.Server.LogLevel)

	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		logger.SetLevel(newCfg.Server.LogLevel)
		logger.Info("config reloaded", zap.Any("feature_flags", newCfg.FeatureFlags))
	}); err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	}

	if err := run(ctx, cfg); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := infmysql.Open(ctx, infmysql.Options{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := infmysql.ApplySchema(ctx, db, infmysql.Schema()); err != nil {
			return err
		}
	}

	// Redis 为可选依赖；不可用时幂等快速路径、Token 黑名单与限流均降级
	var (
		rdb goredis.UniversalClient
		cmd goredis.Cmdable
	)
	if client := infrds.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); client != nil {
		if err := infrds.Ping(ctx, client, 2*time.Second); err != nil {
			logger.Warn("redis unavailable, running without cache", zap.Error(err))
		} else {
			rdb, cmd = client, client
		}
		defer client.Close()
	}

	node, err := snowflake.NewNode(cfg.Server.NodeID)
	if err != nil {
		return fmt.Errorf("snowflake node: %w", err)
	}

	limits := service.BetLimits{}
	if v, ok := helper.ParseMoney(cfg.Betting.MinBet); ok {
		limits.Min = v
	}
	if v, ok := helper.ParseMoney(cfg.Betting.MaxBet); ok {
		limits.Max = v
	}

	env := &service.Env{
		DB:        db,
		Redis:     rdb,
		Clock:     helper.LocalClock{Loc: cfg.Location()},
		TxTimeout: cfg.TxTimeout(),
	}
	svcs := service.NewServices(env, service.Options{
		Node:           node,
		Limits:         limits,
		Odds:           service.DefaultOdds().WithOverrides(cfg.Betting.Odds),
		SettlePageSize: cfg.Settlement.PageSize,
		AutoSettle:     func() bool { return config.GetFeatureFlag("auto_settle") },
		WebhookSecret:  func(provider string) string { return config.GetCurrent().WebhookSecret(provider) },
	})

	verifier := auth.NewVerifier(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer,
		time.Duration(cfg.Auth.JWT.AccessTokenTTL)*time.Second, cmd)

	api.Setup(api.Deps{
		Services: svcs,
		Ready: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			return infrds.Ping(ctx, cmd, time.Second)
		},
	})
	routers.Register(verifier, cmd)

	pub, closePub := newPublisher(cfg)
	defer closePub()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return (&worker.OutboxDispatcher{
			DB:        db,
			Pub:       pub,
			BatchSize: int(config.GetThreshold("outbox_batch_size", 100)),
		}).Run(gctx)
	})
	g.Go(func() error {
		return (&worker.Janitor{
			DB: db,
			IdemRetention: func() time.Duration {
				return time.Duration(config.GetCurrent().Betting.IdempotencyRetentionHour) * time.Hour
			},
			WebhookRetention: func() time.Duration {
				return time.Duration(config.GetCurrent().Webhook.RetentionHours) * time.Hour
			},
		}).Run(gctx)
	})
	if src := newResultSource(gctx, cfg); src != nil {
		g.Go(func() error {
			return (&worker.InboxConsumer{Source: src, Results: svcs.Result}).Run(gctx)
		})
	}

	var metricsSrv *http.Server
	if cfg.Observability.EnableProm && cfg.Observability.PromAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Observability.PromAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	beego.BConfig.AppName = "lotto-server"
	beego.BConfig.CopyRequestBody = true
	beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	beego.BConfig.Log.AccessLogs = false
	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.Server.Port))
		beego.Run()
		if gctx.Err() == nil {
			return fmt.Errorf("api server stopped unexpectedly")
		}
		return nil
	})

	// 优雅退出：停止接收请求后再等待 worker 结束
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		if err := beego.BeeApp.Server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api shutdown", zap.Error(err))
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}
