package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/chat-ledger/internal/config"
	"github.com/Veraticus/chat-ledger/internal/engine"
	"github.com/Veraticus/chat-ledger/internal/extract"
	"github.com/Veraticus/chat-ledger/internal/normalize"
	"github.com/Veraticus/chat-ledger/internal/reconcile"
	"github.com/Veraticus/chat-ledger/internal/reply"
	"github.com/Veraticus/chat-ledger/internal/service"
	"github.com/Veraticus/chat-ledger/internal/sheets"
	"github.com/Veraticus/chat-ledger/internal/storage"
	"github.com/Veraticus/chat-ledger/internal/validate"
	"github.com/Veraticus/chat-ledger/internal/vocab"
	"github.com/spf13/viper"
)

// appOptions selects which collaborators buildApp wires.
type appOptions struct {
	// dryRun commits to an in-memory ledger and skips the journal.
	dryRun bool
	// phrasing enables the Gemini phraser when configured.
	phrasing bool
}

// app holds the assembled pipeline and everything that must be closed.
type app struct {
	settings   *config.Settings
	pipeline   *engine.Pipeline
	reconciler *reconcile.Reconciler
	journal    *storage.SQLiteStorage
	locale     normalize.Locale
	closers    []func() error
}

func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return settings, nil
}

func loadVocabulary(path string) (*vocab.Vocabulary, error) {
	if path == "" {
		return vocab.Default(), nil
	}
	v, err := vocab.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	return v, nil
}

// openLedger connects to the configured sheet, or an in-memory ledger for dry
// runs. Tests replace it.
var openLedger = func(ctx context.Context, dryRun bool, logger *slog.Logger) (service.Ledger, error) {
	if dryRun {
		return sheets.NewMockLedger(), nil
	}
	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	ledger, err := sheets.NewLedger(ctx, *sheetsCfg, logger)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// initJournal opens the commit journal and applies migrations.
func initJournal(ctx context.Context, path string) (*storage.SQLiteStorage, error) {
	store, err := storage.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return store, nil
}

func buildApp(ctx context.Context, opts appOptions) (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	a := &app{settings: settings}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	a.locale, err = normalize.LocaleByName(settings.Locale.Name, settings.Locale.TimeZone)
	if err != nil {
		return nil, err
	}
	words, err := loadVocabulary(settings.Vocabulary)
	if err != nil {
		return nil, err
	}

	ledger, err := openLedger(ctx, opts.dryRun, logger)
	if err != nil {
		return nil, err
	}

	reconcileOpts := []reconcile.Option{reconcile.WithLogger(logger)}
	if !opts.dryRun {
		if a.journal, err = initJournal(ctx, settings.Journal.Path); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.journal.Close)
		reconcileOpts = append(reconcileOpts, reconcile.WithJournal(a.journal))
	}
	a.reconciler = reconcile.New(ledger, reconcile.Config{
		Retry:            settings.RetryOptions(),
		CorrectionWindow: settings.Commit.CorrectionWindow,
		Retention:        settings.Commit.Retention,
	}, reconcileOpts...)
	if _, err := a.reconciler.Seed(ctx); err != nil {
		return nil, err
	}

	composerOpts := []reply.ComposerOption{reply.WithLogger(logger)}
	if opts.phrasing && settings.Reply.Gemini.Enabled {
		phraser, err := reply.NewGeminiPhraser(ctx, reply.GeminiConfig{
			Logger:            logger,
			APIKey:            settings.Reply.Gemini.APIKey,
			Model:             settings.Reply.Gemini.Model,
			RequestsPerMinute: settings.Reply.Gemini.RequestsPerMinute,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, phraser.Close)
		composerOpts = append(composerOpts, reply.WithPhraser(phraser, settings.Reply.Gemini.Timeout))
	}
	composer, err := reply.NewComposer(settings.Reply.Language, composerOpts...)
	if err != nil {
		return nil, err
	}

	a.pipeline = engine.New(
		normalize.New(words, a.locale),
		extract.New(logger),
		validate.New(validate.Config{
			KnownCategories: words.KnownCategories(),
			Threshold:       settings.Validation.Threshold,
			MaxPastDays:     settings.Validation.MaxPastDays,
			MaxFutureDays:   settings.Validation.MaxFutureDays,
		}),
		a.reconciler,
		composer,
		logger,
	)

	ok = true
	return a, nil
}

// Close releases collaborators in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func closeApp(a *app) {
	if err := a.Close(); err != nil {
		slog.Error("failed to close resources", "error", err)
	}
}
