package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/brewroom/backend/registry"
	httpServer "github.com/brewroom/backend/server/http"
	websocketServer "github.com/brewroom/backend/server/websocket"
	"github.com/brewroom/backend/service"
	store "github.com/brewroom/backend/storage/memory"
	sw "github.com/brewroom/backend/switch"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	reg := registry.New(&logger)
	svc := service.NewService(service.Config{
		RoomStore: store.NewMemStore(),
		Registry:  reg,
		Router: sw.NewSwitch(sw.Config{
			Logger:    &logger,
			Directory: reg,
		}),
		Logger: &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:        &logger,
		StatusService: svc,
		ListenAddr:    *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:         &logger,
		SessionService: svc,
		ListenAddr:     *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
