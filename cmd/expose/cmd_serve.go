package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/davidmdm/expose/internal"
	"github.com/davidmdm/expose/internal/k8s"
	"github.com/davidmdm/expose/internal/logging"
	"github.com/davidmdm/expose/internal/server"
)

type ServeParams struct {
	GlobalSettings
}

//go:embed cmd_serve_help.txt
var serveHelp string

func init() {
	serveHelp = strings.TrimSpace(internal.Colorize(serveHelp))
}

func GetServeParams(settings GlobalSettings, args []string) (*ServeParams, error) {
	flagset := flag.NewFlagSet("serve", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), serveHelp)
		flagset.PrintDefaults()
	}

	params := ServeParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.Parse(args)

	return &params, nil
}

func Serve(ctx context.Context, params ServeParams) error {
	cfg, err := getConfig(params.GlobalSettings)
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	logger, flush, err := logging.New()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer flush()

	client, err := k8s.NewClientFromKubeConfig(cfg.KubeConfig)
	if err != nil {
		return fmt.Errorf("failed to instantiate k8 client: %w", err)
	}

	svr := http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(client, logger),
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := svr.ListenAndServe(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				return
			}
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svr.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	logger.Info("server stopped")

	return nil
}
