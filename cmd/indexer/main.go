package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/events"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/index"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/kv"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/metrics"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/node"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/service"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/transport"
)

type config struct {
	DBPath      string        `long:"db-path" env:"INDEXER_DB_PATH" description:"badger database directory" default:"./data"`
	HTTPAddr    string        `long:"http-addr" env:"INDEXER_HTTP_ADDR" description:"query API listen address" default:":8000"`
	RPCURL      string        `long:"rpc-url" env:"INDEXER_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser     string        `long:"rpc-user" env:"INDEXER_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword string        `long:"rpc-password" env:"INDEXER_RPC_PASSWORD" description:"Bitcoin RPC password"`
	EventQueue  int           `long:"event-queue" env:"INDEXER_EVENT_QUEUE" description:"notification queue size" default:"4096"`
	HTTPTimeout time.Duration `long:"http-timeout" env:"INDEXER_HTTP_TIMEOUT" description:"HTTP timeout for RPC requests" default:"30s"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("indexer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	store, err := kv.OpenBadger(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close store failed", zap.Error(err))
		}
	}()

	rpc, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpc.Shutdown()
		rpc.WaitForShutdown()
	}()

	dispatcher := events.NewDispatcher(logger.Named("events"), cfg.EventQueue)
	dispatcher.Start()
	defer dispatcher.Stop()

	client := node.NewClient(rpc, metrics.RPCObserver{})
	engine, err := index.NewEngine(store, client, dispatcher, metrics.EngineObserver{}, logger.Named("engine"))
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	syncer, err := service.NewSyncer(engine, client, logger.Named("syncer"), nil)
	if err != nil {
		return fmt.Errorf("init syncer: %w", err)
	}

	mux := http.NewServeMux()
	transport.NewHandler(engine, logger.Named("http")).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return syncer.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("starting query API", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("query API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down query API")
		return server.Shutdown(context.Background())
	})
	return g.Wait()
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}
