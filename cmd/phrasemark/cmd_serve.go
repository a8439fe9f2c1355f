package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/urfave/cli/v3"

	"github.com/hazyhaar/phrasemark/httpapi"
	"github.com/hazyhaar/phrasemark/settings"
)

func serveCommand(g *globals) *cli.Command {
	var listen string
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the settings and render API without a browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen",
				Usage:       "listen address",
				Sources:     cli.EnvVars("PHRASEMARK_LISTEN"),
				Value:       "127.0.0.1:8090",
				Destination: &listen,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			src, err := g.openSource()
			if err != nil {
				return err
			}
			defer src.close()

			s, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			var current atomic.Pointer[settings.Settings]
			current.Store(&s)

			go func() {
				err := src.Watch(ctx, func(next settings.Settings) { current.Store(&next) })
				if err != nil {
					g.logger.Error("serve: settings watcher stopped", "error", err)
				}
			}()

			api := httpapi.New(httpapi.Options{
				Settings: func() settings.Settings { return *current.Load() },
				Save: func(ctx context.Context, next settings.Settings) error {
					if err := src.save(ctx, next); err != nil {
						return err
					}
					current.Store(&next)
					return nil
				},
				Logger: g.logger,
			})
			return serveHTTP(ctx, g, listen, api.Handler())
		},
	}
}
