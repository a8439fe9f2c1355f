// Command phrasemark highlights configured phrases in the editors of live
// web pages and offers one-click replacements.
//
//	phrasemark --config phrasemark.yaml watch --url https://app.intercom.com/
//	echo "Это неправильно." | phrasemark render
//	phrasemark hosts app.intercom.com example.org
//	phrasemark --db phrasemark.db serve --listen :8090
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/hazyhaar/phrasemark/settings"

	_ "modernc.org/sqlite"
)

var version = "dev"

// globals are the flags shared by every command.
type globals struct {
	LogLevel   string
	ConfigPath string
	DBPath     string

	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := &globals{in: os.Stdin, out: os.Stdout}
	if err := newApp(g).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "phrasemark:", err)
		os.Exit(1)
	}
}

func newApp(g *globals) *cli.Command {
	app := &cli.Command{
		Name:    "phrasemark",
		Usage:   "Highlight phrases in web editors and offer replacements",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("PHRASEMARK_LOG_LEVEL"),
				Value:       "info",
				Destination: &g.LogLevel,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML settings file",
				Sources:     cli.EnvVars("PHRASEMARK_CONFIG"),
				Value:       "phrasemark.yaml",
				Destination: &g.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "db",
				Usage:       "SQLite settings store; takes precedence over --config",
				Sources:     cli.EnvVars("PHRASEMARK_DB"),
				Destination: &g.DBPath,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			g.logger = newLogger(g.LogLevel)
			slog.SetDefault(g.logger)
			return ctx, nil
		},
	}
	app.Commands = []*cli.Command{
		watchCommand(g),
		renderCommand(g),
		hostsCommand(g),
		serveCommand(g),
	}
	return app
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// source is the configured settings provider with its optional writer.
type source struct {
	settings.Provider
	save  func(context.Context, settings.Settings) error
	close func() error
}

func (g *globals) openSource() (*source, error) {
	if g.DBPath != "" {
		st, err := settings.OpenStore(g.DBPath, settings.WithStoreLogger(g.logger))
		if err != nil {
			return nil, err
		}
		return &source{Provider: st, save: st.Save, close: st.Close}, nil
	}
	fp := settings.NewFileProvider(g.ConfigPath, g.logger)
	return &source{Provider: fp, save: fp.Save, close: func() error { return nil }}, nil
}
