package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/chat-ledger/internal/bus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume chat messages from RabbitMQ and reply",
		Long: `Connect to the message broker, consume inbound chat events and publish
one reply per message. Accepted messages are written to the Google Sheet.

Commits are journaled locally so messages redelivered after a restart are
recognized and not written twice.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, appOptions{phrasing: true})
	if err != nil {
		return err
	}
	defer closeApp(a)

	settings := a.settings
	go a.reconciler.RunJanitor(ctx, settings.Commit.JanitorInterval)

	gateway, err := bus.Dial(settings.Bus.URL, bus.Config{
		Exchange:      settings.Bus.Exchange,
		Queue:         settings.Bus.Queue,
		RoutingKey:    settings.Bus.RoutingKey,
		ReplyExchange: settings.Bus.ReplyExchange,
		Prefetch:      settings.Bus.Prefetch,
	}, a.pipeline, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			slog.Warn("failed to close broker connection", "error", closeErr)
		}
	}()

	if err := gateway.Setup(); err != nil {
		return fmt.Errorf("failed to set up broker topology: %w", err)
	}

	slog.Info("chatledger serving",
		"version", version,
		"locale", a.locale.Name,
		"journal", settings.Journal.Path)

	return gateway.Run(ctx)
}
