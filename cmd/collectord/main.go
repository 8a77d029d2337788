package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wtask/collector/internal/collector"
)

func main() {
	logger := zerolog.New(os.Stderr).
		Level(Config.LogLevel).
		With().
		Timestamp().
		Str("app", BinaryName+":"+Version).
		Str("instance", uuid.NewString()).
		Logger()
	logger.Info().Interface("config", Config).Msg("started")

	server, err := collector.New(
		Config.Port,
		collector.WithAddress(Config.IPAddress),
		collector.WithLogger(logger),
		collector.WithMaxClients(Config.MaxClients),
		collector.WithQueueCapacity(Config.QueueCapacity),
		collector.WithQueuePolicy(Config.QueuePolicy),
		collector.WithStopPolicy(Config.StopPolicy),
		collector.WithReadBufferSize(Config.ReadBufferSize),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("can't build server")
	}
	if err := server.Bind(); err != nil {
		logger.Fatal().Err(err).Msg("unable to bind")
	}
	if err := server.Listen(); err != nil {
		logger.Fatal().Err(err).Msg("unable to listen")
	}
	serve := func() {
		if err := server.AcceptLoop(); err != nil {
			logger.Error().Err(err).Msg("accept loop exited")
		}
	}
	go serve()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for received := range sig {
		if received == syscall.SIGHUP {
			logger.Info().Msg("got restart signal")
			logger.Info().Dur("elapsed", server.Shutdown(Config.ShutdownTimeout)).Msg("server stopped")
			if err := server.Restart(); err != nil {
				logger.Fatal().Err(err).Msg("unable to restart")
			}
			go serve()
			logger.Info().Msg("server restarted")
			continue
		}
		logger.Info().Msg("got stop signal")
		logger.Info().Dur("elapsed", server.Shutdown(Config.ShutdownTimeout)).Msg("server stopped, bye")
		return
	}
}
