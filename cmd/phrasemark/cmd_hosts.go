package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func hostsCommand(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "hosts",
		Usage:     "Report whether the highlighter would run on each host",
		UsageText: "phrasemark hosts HOST...",
		Action: func(ctx context.Context, c *cli.Command) error {
			hosts := c.Args().Slice()
			if len(hosts) == 0 {
				return fmt.Errorf("hosts: at least one host is required")
			}
			src, err := g.openSource()
			if err != nil {
				return err
			}
			defer src.close()

			s, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}
			for _, h := range hosts {
				verdict := "blocked"
				if s.Allowed(h) {
					verdict = "allowed"
				}
				fmt.Fprintf(g.out, "%s\t%s\n", h, verdict)
			}
			return nil
		},
	}
}
