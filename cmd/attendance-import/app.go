package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/attendance-sync/pkg/composables"
	"github.com/jacksonlee411/attendance-sync/pkg/configuration"
	"github.com/jacksonlee411/attendance-sync/pkg/jibble"
	"github.com/jacksonlee411/attendance-sync/pkg/logging"
	"github.com/jacksonlee411/attendance-sync/pkg/metrics"
)

// app holds what a command needs for one invocation.
type app struct {
	conf    *configuration.Configuration
	log     *logrus.Logger
	closers []func()
}

func loadConfiguration() (conf *configuration.Configuration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = withCode(exitUsage, fmt.Errorf("configuration: %v", r))
		}
	}()
	return configuration.Use(), nil
}

func newApp(ctx context.Context) (*app, error) {
	conf, err := loadConfiguration()
	if err != nil {
		return nil, err
	}
	a := &app{conf: conf, log: conf.Logger()}
	a.closers = append(a.closers, conf.Unload)

	if conf.OpenTelemetry.Enabled {
		cleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		a.closers = append(a.closers, cleanup)
		a.log.Info("OpenTelemetry tracing enabled, exporting to " + conf.OpenTelemetry.TempoURL)
	}

	if conf.Prometheus.Enabled {
		srv := metrics.NewServer(
			conf.Prometheus.Addr,
			metrics.NewPrometheusController(conf.Prometheus.Path, prometheus.DefaultGatherer),
			a.log,
		)
		addr, err := srv.Start()
		if err != nil {
			a.Close()
			return nil, withCode(exitUsage, fmt.Errorf("metrics server: %w", err))
		}
		a.log.WithField("addr", addr.String()).Info("serving metrics")
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}
	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// withDB connects the pool and binds it to ctx.
func (a *app) withDB(ctx context.Context) (context.Context, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, a.conf.Database.Opts)
	if err != nil {
		return ctx, withCode(exitDB, fmt.Errorf("db connect failed: %w", err))
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return ctx, withCode(exitDB, fmt.Errorf("db ping failed: %w", err))
	}
	a.closers = append(a.closers, pool.Close)
	return composables.WithPool(ctx, pool), nil
}

func (a *app) jibbleClient() (*jibble.Client, error) {
	jc := a.conf.Jibble
	if err := jc.RequireCredentials(); err != nil {
		return nil, withCode(exitUsage, err)
	}
	store, err := a.tokenStore()
	if err != nil {
		return nil, err
	}
	client, err := jibble.NewClient(jibble.Config{
		ClientID:     jc.ClientID,
		ClientSecret: jc.ClientSecret,
		TokenURL:     jc.TokenURL,
		APIURL:       jc.APIURL,
		WorkspaceURL: jc.WorkspaceURL,
		Timeout:      jc.Timeout,
		MaxRetries:   jc.MaxRetries,
		RateLimit:    jc.RateLimit,
		TokenStore:   store,
		Logger:       a.log,
	})
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return client, nil
}

func (a *app) tokenStore() (jibble.TokenStore, error) {
	tc := a.conf.TokenCache
	if tc.Backend != configuration.TokenCacheRedis {
		return jibble.NewMemoryTokenStore(), nil
	}
	store, closeFn, err := jibble.NewRedisTokenStoreFromURL(tc.RedisURL, tc.Key)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	a.closers = append(a.closers, func() { _ = closeFn() })
	return store, nil
}
