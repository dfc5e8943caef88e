package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gwillem/rover/pkg/remote"
)

type ServeCommand struct {
	Sim  bool   `long:"sim" description:"Simulate the wheels and the sensor board"`
	Addr string `long:"addr" description:"Listen address, overrides the configured one"`
}

const shutdownTimeout = 5 * time.Second

func (c *ServeCommand) Execute(args []string) error {
	cfg, found, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg)
	if !found {
		logger.Warn().Str("path", opts.Config).Msg("no configuration file, using defaults")
	}

	addr := cfg.Remote.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	r, err := openRig(cfg, logger, c.Sim)
	if err != nil {
		return fmt.Errorf("open rover: %w", err)
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServe(ctx, r, addr); err != nil {
		return err
	}
	logger.Info().Msg("shut down")
	return nil
}

// runServe runs the rig and the remote control server until ctx is done or
// the server fails.
func runServe(ctx context.Context, r *rig, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wait := r.start(ctx)
	defer func() {
		cancel()
		wait()
	}()

	stopServer, failed, err := serveRemote(ctx, r, addr)
	if err != nil {
		return err
	}
	defer stopServer()

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		return err
	}
}

// serveRemote starts the remote control server on addr. It fails at once if
// addr cannot be bound. Later server failures arrive on the returned channel.
// The returned function shuts the server down.
func serveRemote(ctx context.Context, r *rig, addr string) (func(), <-chan error, error) {
	handler := remote.New(remote.Config{
		Control:   r.arb,
		State:     r.arb,
		Recorder:  r.recorder,
		Exporter:  r.exporter,
		Model:     r.engine,
		Fs:        r.fs,
		ModelPath: r.cfg.Model.Path,
		Logger:    r.logger,
	})
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	failed := make(chan error, 1)
	go func() {
		r.logger.Info().Str("addr", ln.Addr().String()).Msg("remote control listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- fmt.Errorf("remote control server: %w", err)
		}
	}()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn().Err(err).Msg("remote control shutdown")
		}
	}
	return stop, failed, nil
}
