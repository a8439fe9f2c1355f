package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hazyhaar/phrasemark/browser"
	"github.com/hazyhaar/phrasemark/highlighter"
	"github.com/hazyhaar/phrasemark/httpapi"
	"github.com/hazyhaar/phrasemark/settings"
)

func watchCommand(g *globals) *cli.Command {
	var (
		remote   string
		bin      string
		headless bool
		stealth  bool
		listen   string
	)
	return &cli.Command{
		Name:      "watch",
		Usage:     "Open pages in Chrome and highlight phrases in their editors",
		UsageText: "phrasemark watch --url https://app.intercom.com/ [--listen :8090]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "url",
				Usage:    "page to open (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:        "remote",
				Usage:       "DevTools URL of a running browser; empty launches one",
				Sources:     cli.EnvVars("PHRASEMARK_REMOTE"),
				Destination: &remote,
			},
			&cli.StringFlag{
				Name:        "chrome",
				Usage:       "Chrome binary for the launcher",
				Sources:     cli.EnvVars("PHRASEMARK_CHROME_BIN"),
				Destination: &bin,
			},
			&cli.BoolFlag{
				Name:        "headless",
				Usage:       "launch Chrome headless",
				Destination: &headless,
			},
			&cli.BoolFlag{
				Name:        "stealth",
				Usage:       "open tabs with stealth evasions",
				Value:       true,
				Destination: &stealth,
			},
			&cli.StringFlag{
				Name:        "listen",
				Usage:       "serve the local HTTP API on this address",
				Destination: &listen,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			urls := c.StringSlice("url")
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

			mgr := browser.NewManager(browser.Config{
				RemoteURL: remote,
				Headless:  headless,
				Bin:       bin,
				Logger:    g.logger,
			})
			if _, err := mgr.Start(ctx); err != nil {
				return err
			}
			defer mgr.Close()

			var sessions []*session
			defer func() {
				for _, ss := range sessions {
					ss.page.Close()
				}
			}()
			for _, u := range urls {
				ss, err := openSession(ctx, g, mgr, u, stealth)
				if err != nil {
					return err
				}
				sessions = append(sessions, ss)
				ss.apply(*current.Load())
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := src.Watch(ctx, func(next settings.Settings) {
					current.Store(&next)
					for _, ss := range sessions {
						ss.apply(next)
					}
				})
				if err != nil {
					g.logger.Error("watch: settings watcher stopped", "error", err)
				}
			}()

			if listen != "" {
				api := httpapi.New(httpapi.Options{
					Settings: func() settings.Settings { return *current.Load() },
					Save:     src.save,
					Stats: func() []highlighter.Stats {
						out := make([]highlighter.Stats, 0, len(sessions))
						for _, ss := range sessions {
							out = append(out, ss.hl.Stats())
						}
						return out
					},
					Logger: g.logger,
				})
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := serveHTTP(ctx, g, listen, api.Handler()); err != nil {
						g.logger.Error("watch: api stopped", "error", err)
					}
				}()
			}

			g.logger.Info("watch: running", "pages", len(sessions))
			<-ctx.Done()
			g.logger.Info("watch: shutting down")
			wg.Wait()
			return nil
		},
	}
}

// session is one attached tab and its highlighter.
type session struct {
	url  string
	page *browser.Page
	hl   *highlighter.Highlighter
	g    *globals
}

func openSession(ctx context.Context, g *globals, mgr *browser.Manager, url string, stealth bool) (*session, error) {
	tab, err := browser.OpenTab(ctx, mgr, url, stealth)
	if err != nil {
		return nil, err
	}
	page, err := browser.Attach(ctx, tab, g.logger)
	if err != nil {
		return nil, err
	}
	hl := highlighter.New(page, highlighter.WithLogger(g.logger.With("url", url)))
	g.logger.Info("watch: attached", "url", url, "host", page.Host())
	return &session{url: url, page: page, hl: hl, g: g}, nil
}

func (ss *session) apply(s settings.Settings) {
	if err := ss.hl.Apply(s); err != nil {
		ss.g.logger.Warn("watch: apply settings", "url", ss.url, "error", err)
	}
}

// serveHTTP runs h on addr until ctx is done.
func serveHTTP(ctx context.Context, g *globals, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
