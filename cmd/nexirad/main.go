// Command nexirad runs the Nexira personal-AI runtime: it loads
// configuration, assembles every engine via internal/runtime, starts the
// Scheduler's background loop, and serves the HTTP API until a termination
// signal arrives. Grounded on the teacher's cmd/webui main.go for the
// listen/signal/shutdown shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"nexira/internal/config"
	"nexira/internal/mcpserver"
	"nexira/internal/observability"
	"nexira/internal/runtime"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("", "info")

	shutdownOTel, err := observability.InitOTel(context.Background(), cfg.OTel)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdownOTel = nil
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	ctx, stopRuntime := context.WithCancel(context.Background())
	defer stopRuntime()

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble runtime")
	}
	defer rt.Close()

	rt.Start(ctx)

	if rt.MCPServer != nil {
		go func() {
			if err := mcpserver.Run(ctx, rt.MCPServer); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("mcp server stopped")
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: rt.Handler}

	go func() {
		log.Info().Str("addr", addr).Msg("nexirad listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("nexirad shutting down")
	stopRuntime()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}
