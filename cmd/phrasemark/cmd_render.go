package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/hazyhaar/phrasemark/phrase"
	"github.com/hazyhaar/phrasemark/render"
	"github.com/hazyhaar/phrasemark/settings"
)

func renderCommand(g *globals) *cli.Command {
	var matchesOnly bool
	return &cli.Command{
		Name:      "render",
		Usage:     "Render text from stdin with the configured phrases highlighted",
		UsageText: "phrasemark render [--matches] < message.txt",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "matches",
				Usage:       "print matched phrases, one per line, instead of markup",
				Destination: &matchesOnly,
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
			data, err := io.ReadAll(g.in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return writeRender(g.out, string(data), s, matchesOnly)
		},
	}
}

func writeRender(w io.Writer, text string, s settings.Settings, matchesOnly bool) error {
	idx := phrase.Build(s.Phrases)
	if matchesOnly {
		for _, loc := range idx.FindAll(text) {
			if _, err := fmt.Fprintln(w, text[loc[0]:loc[1]]); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintln(w, render.New().Render(text, idx))
	return err
}
