package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/leafo/donations/internal/donations"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "donations"
	app.Usage = "View, append and delete rows of a blood donation records file"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "file", Usage: "records file to open instead of prompting for it"},
		cli.StringFlag{Name: "config", Usage: "path to a JSON configuration file"},
		cli.StringFlag{Name: "audit", Usage: "path to the SQLite audit database"},
		cli.StringFlag{Name: "hook", Usage: "shell command receiving record changes as JSON on stdin"},
		cli.BoolFlag{Name: "history", Usage: "print the audit trail and exit"},
		cli.BoolFlag{Name: "watch", Usage: "print the file again whenever it changes"},
		cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := newLogger(os.Stderr, c.Bool("verbose"))

	var cfg donations.Config
	if path := c.String("config"); path != "" {
		loaded, err := donations.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Debug("Loaded configuration", "path", path)
	}
	if v := c.String("file"); v != "" {
		cfg.File = v
	}
	if v := c.String("audit"); v != "" {
		cfg.AuditDB = v
	}
	if v := c.String("hook"); v != "" {
		cfg.Shell.Command = v
	}

	ctx := context.Background()

	var audit *donations.AuditLog
	if cfg.AuditDB != "" {
		var err error
		audit, err = donations.OpenAudit(ctx, cfg.AuditDB)
		if err != nil {
			return err
		}
		defer audit.Close()
		logger.Debug("Opened audit database", "path", cfg.AuditDB)
	}

	if c.Bool("history") {
		if audit == nil {
			return errors.New("--history requires an audit database")
		}
		return printHistory(ctx, audit)
	}

	store := donations.NewStore(logger)

	if c.Bool("watch") {
		if cfg.File == "" {
			return errors.New("--watch requires --file")
		}
		watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		if err := store.Follow(watchCtx, cfg.File, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	session := donations.NewSession(store, os.Stdin, os.Stdout, os.Stderr, logger)
	session.Path = cfg.File
	session.SetAuditLog(audit)
	session.RegisterSyncTarget(donations.NewShellTarget(cfg.Shell))

	meili, err := donations.NewMeilisearchTarget(ctx, cfg.Meilisearch, logger)
	if err != nil {
		logger.Warn("Failed to initialize Meilisearch", "error", err)
	} else {
		session.RegisterSyncTarget(meili)
	}

	return session.Run(ctx)
}

// newLogger logs warnings and errors by default so that failing audit or
// sync targets are visible; verbose adds debug output.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func printHistory(ctx context.Context, audit *donations.AuditLog) error {
	events, err := audit.Events(ctx)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintln(os.Stdout, ev.String())
	}
	return nil
}

func describeError(err error) string {
	switch {
	case errors.Is(err, donations.ErrRead), errors.Is(err, donations.ErrWrite):
		return "Erro ao manipular o arquivo: " + err.Error()
	case errors.Is(err, donations.ErrFormat):
		return "Entrada inválida: " + err.Error()
	}
	return "Erro: " + err.Error()
}
