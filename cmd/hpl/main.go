// Command hpl runs the ingestion pipeline: schema migrations, single-item
// steps, batch drains and the long-running trigger server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"HappyPlaceLocal/internal/app"
	"HappyPlaceLocal/internal/config"
	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/logging"
)

type options struct {
	Config string `short:"c" long:"config" env:"HPL_CONFIG" description:"Path to the YAML config file"`

	Migrate migrateCommand `command:"migrate" description:"Apply pending database migrations"`
	Run     runCommand     `command:"run" description:"Run one step for one item"`
	Advance advanceCommand `command:"advance" description:"Run the next step for one item"`
	Drain   drainCommand   `command:"drain" description:"Process one batch waiting for a step"`
	Serve   serveCommand   `command:"serve" description:"Start the scheduler and the HTTP trigger API"`
}

var opts options

type migrateCommand struct{}

func (migrateCommand) Execute([]string) error {
	return withApp(func(_ context.Context, a *app.Application) error {
		_, err := a.Migrate()
		return err
	})
}

type runCommand struct {
	ID    int64  `long:"id" required:"true" description:"Ingest item id"`
	Stage string `long:"stage" required:"true" description:"Step to run (classify, enrich, score, rewrite, publish)"`
}

func (c *runCommand) Execute([]string) error {
	step, err := domain.ParseStep(c.Stage)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.Application) error {
		out, err := a.Run(ctx, c.ID, step)
		if err != nil {
			return err
		}
		printOutcome(c.ID, out)
		return nil
	})
}

type advanceCommand struct {
	ID int64 `long:"id" required:"true" description:"Ingest item id"`
}

func (c *advanceCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app.Application) error {
		out, err := a.Advance(ctx, c.ID)
		if err != nil {
			return err
		}
		printOutcome(c.ID, out)
		return nil
	})
}

type drainCommand struct {
	Stage string `long:"stage" description:"Step to drain; all steps when empty"`
}

func (c *drainCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app.Application) error {
		if c.Stage == "" {
			report, err := a.Runner.Tick(ctx)
			fmt.Printf("processed=%d skipped=%d outcomes=%v\n", report.Processed, report.Skipped, report.Outcomes)
			return err
		}
		step, err := domain.ParseStep(c.Stage)
		if err != nil {
			return err
		}
		report, err := a.Drain(ctx, step)
		fmt.Printf("step=%s processed=%d skipped=%d outcomes=%v\n", step, report.Processed, report.Skipped, report.Outcomes)
		return err
	})
}

type serveCommand struct{}

func (serveCommand) Execute([]string) error {
	return withApp(func(ctx context.Context, a *app.Application) error {
		if _, err := a.Migrate(); err != nil {
			return err
		}
		return a.Serve(ctx)
	})
}

func withApp(fn func(context.Context, *app.Application) error) error {
	if opts.Config != "" {
		_ = os.Setenv("HPL_CONFIG", opts.Config)
	}
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close application", "error", err)
		}
	}()
	return fn(ctx, application)
}

func printOutcome(id int64, out domain.Outcome) {
	fmt.Printf("item=%d outcome=%s stage=%s", id, out.Kind, out.Stage)
	if out.PostID != 0 {
		fmt.Printf(" post=%d", out.PostID)
	}
	if out.Message != "" {
		fmt.Printf(" message=%q", out.Message)
	}
	fmt.Println()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
