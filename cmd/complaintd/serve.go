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

	"github.com/spf13/cobra"

	"github.com/joelkehle/hmrc-complaints/internal/extract"
	"github.com/joelkehle/hmrc-complaints/internal/httpapi"
	"github.com/joelkehle/hmrc-complaints/internal/knowledge"
	"github.com/joelkehle/hmrc-complaints/internal/layout"
	"github.com/joelkehle/hmrc-complaints/internal/lettergen"
	"github.com/joelkehle/hmrc-complaints/internal/logging"
	"github.com/joelkehle/hmrc-complaints/internal/render"
	"github.com/joelkehle/hmrc-complaints/internal/store"
	"github.com/joelkehle/hmrc-complaints/internal/stream"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	cases, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite store (%s): %w", cfg.Store.Path, err)
	}
	defer cases.Close()
	logger.Info("using sqlite store", "path", cfg.Store.Path)

	classifier, err := newClassifier(cfg)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	deps := httpapi.Deps{
		Extractor:      extract.New(extract.Config{}),
		Classifier:     classifier,
		Cases:          cases,
		PDF:            render.NewChromiumPDFRenderer(cfg.Render.ChromePath),
		LayoutDefaults: layoutDefaults(cfg),
		Logger:         logging.Component(logger, "httpapi"),
	}

	var images layout.ImageGenerator
	if cfg.OpenAI.APIKey != "" {
		g, err := layout.NewOpenAIImageGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.ImageModel)
		if err != nil {
			return fmt.Errorf("image generator: %w", err)
		}
		images = g
	} else if cfg.Layout.EnableImages {
		logger.Warn("layout images enabled without an openai api key; components will carry no images")
	}
	deps.Mapper = layout.NewMapper(images, logging.Component(logger, "layout"))

	var gateway *stream.Gateway
	caller, err := newAnthropic(cfg)
	if err != nil {
		logger.Warn("letter generation and knowledge chat disabled", "error", err)
	} else {
		gen := lettergen.NewGenerator(
			lettergen.NewLLMStageRunner(caller),
			lettergen.Config{Budget: cfg.Letters.Budget},
			logging.Component(logger, "lettergen"),
		)
		gateway = stream.NewGateway(gen, logging.Component(logger, "stream"))
		deps.Letters = gateway

		embedder, err := newEmbedder(ctx, cfg)
		if err != nil {
			logger.Warn("knowledge chat disabled", "error", err)
		} else {
			deps.Chat = knowledge.NewService(embedder, cases, caller, knowledgeConfig(cfg), logging.Component(logger, "knowledge"))
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("complaintd listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if gateway != nil {
		done := make(chan struct{})
		go func() {
			gateway.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("letter sessions still running at shutdown")
		}
	}
	return nil
}
