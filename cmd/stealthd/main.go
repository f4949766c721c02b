// Command stealthd serves the traceable stealth address demo API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/httpapi"
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/builtin"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	addr := flag.String("addr", "", "listen address, overriding the configuration")
	envFile := flag.String("env-file", ".env", "optional file of KEY=value environment overrides")
	flag.Parse()

	if err := run(*configPath, *addr, *envFile); err != nil {
		log.Fatalf("stealthd: %v", err)
	}
}

func run(configPath, addr, envFile string) error {
	if err := tsa.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg := tsa.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = tsa.LoadConfig(configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slogger, err := logging.NewSlog(os.Stderr, cfg.LogFormat, level)
	if err != nil {
		return err
	}
	slog.SetDefault(slogger)
	slogger.Info("starting stealthd", "version", tsa.Version(), "paramDir", cfg.ParamDir, "libDir", cfg.LibDir)

	opts := []tsa.Option{
		tsa.WithLibDir(cfg.LibDir),
		tsa.WithCatalog(params.NewCatalog(cfg.ParamDir)),
		tsa.WithLogger(logging.New(slogger)),
	}
	for id, path := range cfg.LibraryOverrides() {
		opts = append(opts, tsa.WithLibraryPath(id, path))
	}
	reg := tsa.NewRegistry(opts...)
	if err := builtin.Register(reg); err != nil {
		return err
	}
	facade := tsa.NewFacade(reg, tsa.WithMaxBenchmarkIterations(cfg.MaxBenchmarkIterations))
	defer func() {
		if cerr := facade.Close(context.Background()); cerr != nil {
			slogger.Error("closing schemes", "err", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DefaultScheme != "" {
		if _, err := facade.ActivateScheme(ctx, cfg.DefaultScheme); err != nil {
			if errors.Is(err, native.ErrNotBuilt) {
				return fmt.Errorf("native loading needs a cgo build: %w", err)
			}
			slogger.Warn("default scheme not activated", "scheme", cfg.DefaultScheme, "err", err)
		}
	}

	httpCfg := httpapi.DefaultConfig(cfg.ListenAddr, slogger)
	httpCfg.CORSOrigins = cfg.CORSOrigins
	srv := httpapi.New(httpCfg, httpapi.NewAPI(facade))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		slogger.Info("shutting down")
		return srv.Shutdown(context.Background())
	})
	return g.Wait()
}
