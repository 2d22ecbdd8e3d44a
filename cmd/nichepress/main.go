package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"NichePress/internal/app"
	"NichePress/internal/config"
	"NichePress/internal/domain"
	"NichePress/internal/logging"
)

func main() {
	root := &cli.Command{
		Name:  "nichepress",
		Usage: "Register content niches and generate their articles",
		Commands: []*cli.Command{
			generateCmd(),
			planCmd(),
			listCmd(),
			retryCmd(),
			sweepCmd(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() (*app.Application, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)
	return app.New(cfg, logger)
}

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Register a niche and run the generation pipeline",
		ArgsUsage: "<slug> <keyword>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			slug := cmd.Args().First()
			keywords := cmd.Args().Tail()
			if slug == "" || len(keywords) == 0 {
				return fmt.Errorf("usage: nichepress generate <slug> <keyword>...")
			}

			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Close()

			rec, err := application.Process(ctx, slug, keywords)
			if err != nil {
				return err
			}
			printRecord(rec)
			if rec.Status == domain.StatusFailed {
				// cli.Exit lets the deferred Close run before the
				// process exits nonzero.
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func planCmd() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Register a niche without generating; the sweep picks it up",
		ArgsUsage: "<slug> <keyword>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			slug := cmd.Args().First()
			keywords := cmd.Args().Tail()
			if slug == "" || len(keywords) == 0 {
				return fmt.Errorf("usage: nichepress plan <slug> <keyword>...")
			}

			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Close()

			rec, created, err := application.Plan(ctx, slug, keywords)
			if err != nil {
				return err
			}
			if !created {
				fmt.Printf("niche %q already registered (status %s)\n", rec.Slug, rec.Status)
				return nil
			}
			printRecord(rec)
			return nil
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List registered niches",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "Filter by status (planned, published, failed, ...)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Close()

			var filter *domain.Status
			if raw := cmd.String("status"); raw != "" {
				status := domain.Status(raw)
				filter = &status
			}

			recs, err := application.List(ctx, filter)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				printRecord(rec)
			}
			return nil
		},
	}
}

func retryCmd() *cli.Command {
	return &cli.Command{
		Name:      "retry",
		Usage:     "Reset a failed niche to planned for another run",
		ArgsUsage: "<slug>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			slug := cmd.Args().First()
			if slug == "" {
				return fmt.Errorf("usage: nichepress retry <slug>")
			}

			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Close()

			rec, err := application.Retry(ctx, slug)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
}

func sweepCmd() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run the cron-driven sweep over planned niches until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return application.RunSweeper(ctx)
		},
	}
}

func printRecord(rec domain.NicheRecord) {
	line := fmt.Sprintf("%s\t%s", rec.Slug, rec.Status)
	if rec.LastError != "" {
		line += "\t" + rec.LastError
	}
	fmt.Println(line)
}
