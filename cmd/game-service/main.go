package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/aviator-game-core/internal/game-service/betting"
	"github.com/radieske/aviator-game-core/internal/game-service/broadcast"
	"github.com/radieske/aviator-game-core/internal/game-service/domain"
	httpapi "github.com/radieske/aviator-game-core/internal/game-service/http"
	"github.com/radieske/aviator-game-core/internal/game-service/ledger"
	"github.com/radieske/aviator-game-core/internal/game-service/multiplier"
	"github.com/radieske/aviator-game-core/internal/game-service/notify"
	"github.com/radieske/aviator-game-core/internal/game-service/producer"
	"github.com/radieske/aviator-game-core/internal/game-service/scheduler"
	"github.com/radieske/aviator-game-core/internal/game-service/settlement"
	"github.com/radieske/aviator-game-core/internal/game-service/ws"
	"github.com/radieske/aviator-game-core/internal/shared/cache"
	"github.com/radieske/aviator-game-core/internal/shared/config"
	"github.com/radieske/aviator-game-core/internal/shared/kafka"
	"github.com/radieske/aviator-game-core/internal/shared/logger"
	"github.com/radieske/aviator-game-core/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	g := cfg.Game
	if g.WinThreshold.LessThanOrEqual(g.MultiplierMin) {
		log.Warn("win threshold is at or below the multiplier minimum; nearly every bet wins",
			zap.String("winThreshold", g.WinThreshold.String()),
			zap.String("multiplierMin", g.MultiplierMin.String()),
		)
	}
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// storage
	st, storeHealth, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStore()

	// redis (broadcast de rodadas); opcional
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected")
	}

	// kafka (bet_placed, bet_settled, round_finished); opcional
	var (
		publisher *producer.KafkaPublisher
		notifiers notify.Multi
	)
	if cfg.KafkaBrokers != "" {
		placedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
		settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
		finishedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundFinished)
		defer placedW.Close()
		defer settledW.Close()
		defer finishedW.Close()

		publisher = producer.NewKafkaPublisher(placedW, finishedW)
		notifiers = append(notifiers, notify.NewKafka(settledW))
		log.Info("kafka writers ready", zap.String("brokers", cfg.KafkaBrokers))
	}

	// telegram; falha aqui só desativa a notificação
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken)
		if err != nil {
			log.Warn("telegram disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	// métricas
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gm := metrics.NewGame(reg)

	clock := quartz.NewReal()
	led := ledger.New(log, st, cfg.AdminID)
	retry := scheduler.NewRetry(log, g.RetryAttempts, g.RetryBackoff)

	hub := ws.NewHub(log, func(*http.Request) bool { return true })

	var bc *broadcast.Redis
	if rdb != nil {
		bc = broadcast.NewRedis(rdb, cfg.RedisRoundChannel, log)
		ws.StartRedisSubscriber(ctx, rdb, cfg.RedisRoundChannel, hub, log)
	}

	sched := &scheduler.Scheduler{
		Log:   log,
		Clock: clock,
		Config: scheduler.Config{
			TickInterval:    g.TickInterval,
			BettingDuration: g.BettingDuration,
			RoundDuration:   g.RoundDuration,
			TickBackoff:     g.TickBackoff,
			NotifyTimeout:   g.NotifyTimeout,
		},
		Store: st,
		Settler: &settlement.Settler{
			Log:          log,
			Store:        st,
			WinThreshold: g.WinThreshold,
			Privileged:   led.IsPrivileged,
			Retry:        retry,
			Now:          time.Now,
		},
		Source: multiplier.NewUniform(g.MultiplierMin, g.MultiplierMax, nil),
		Retry:  retry,
	}
	if len(notifiers) > 0 {
		sched.Notifier = notifiers
	}
	sched.Hooks = scheduler.Hooks{
		OnTransition: func(r domain.Round) {
			if bc != nil {
				bc.OnTransition(r)
			} else {
				hub.Enqueue(broadcast.Update(r))
			}
			if r.Status == domain.RoundFinished && publisher != nil {
				pctx, cancel := context.WithTimeout(context.Background(), g.NotifyTimeout)
				defer cancel()
				if err := publisher.PublishRoundFinished(pctx, r); err != nil {
					log.Warn("publish round_finished failed", zap.String("roundId", r.ID), zap.Error(err))
				}
			}
		},
		OnRoundStarted: func(domain.Round) { gm.RoundsStarted.Inc() },
		OnRoundSettled: func(_ domain.Round, rep settlement.Report) {
			gm.RoundsSettled.Inc()
			for _, o := range rep.Applied {
				if !led.IsPrivileged(o.Bet.UserID) {
					gm.PayoutsTotal.Add(float64(o.Payout))
				}
			}
		},
		OnError: func(stage string) { gm.SchedulerErrors.WithLabelValues(stage).Inc() },
	}
	hub.Snapshot = broadcast.Snapshot(sched.Current, bc)

	bets := &betting.Service{
		Log:        log,
		Clock:      clock,
		Store:      st,
		Window:     sched,
		Options:    g.BetOptions,
		Privileged: led.IsPrivileged,
		OnPlaced:   func(domain.Bet) { gm.BetsPlaced.Inc() },
		OnRejected: func(code string) { gm.BetsRejected.WithLabelValues(code).Inc() },
	}
	if publisher != nil {
		bets.Publisher = publisher
	}

	// HTTP público
	api := &httpapi.API{
		Log:        log,
		Clock:      clock,
		Bets:       bets,
		Ledger:     led,
		Rounds:     sched,
		BetOptions: g.BetOptions,
		WS:         hub.HandleWS,
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		if err := storeHealth(ctx); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	eg.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		log.Info("game-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		log.Info("metrics/health server starting", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(sctx)
		_ = metricsSrv.Shutdown(sctx)
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Error("service stopped with error", zap.Error(err))
		return
	}
	log.Info("service stopped")
}
