package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crmflow/crm-automation/internal/auth"
	"github.com/crmflow/crm-automation/internal/config"
	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/observability"
	"github.com/crmflow/crm-automation/internal/worker"
)

func main() {
	app := &cli.App{
		Name:  "crm-automation",
		Usage: "CRM workflow and ticket automation engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error); overrides LOG_LEVEL",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API and the SLA monitor",
				Action: runServe,
			},
			{
				Name:   "check-sla",
				Usage:  "Run one SLA breach sweep and exit",
				Action: runCheckSLA,
			},
			{
				Name:  "issue-token",
				Usage: "Sign an access token for a subject",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Required: true, Usage: "Subject id"},
					&cli.StringFlag{Name: "role", Value: string(domain.RoleAgent), Usage: "ADMIN, AGENT or SERVICE"},
				},
				Action: runIssueToken,
			},
			{
				Name:  "hash-secret",
				Usage: "Hash a service-account secret for AUTH_SERVICE_ACCOUNTS",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "secret", Required: true, Usage: "Plaintext secret"},
				},
				Action: runHashSecret,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logger.Level = level
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runServe(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	monitor := worker.NewSLAMonitor(app.sla, cfg.Workflow.SweepInterval(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.App.Addr()))
		if err := app.http.Listen(cfg.App.Addr()); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return monitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.http.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runCheckSLA(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app, err := buildApplication(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	breached, err := app.sla.CheckBreaches(c.Context)
	if err != nil {
		return fmt.Errorf("check SLA: %w", err)
	}
	logger.Info("SLA check complete", zap.Int("breached", breached))
	return nil
}

func runIssueToken(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	meta, token, err := tokens.GenerateToken(c.String("subject"), domain.Role(c.String("role")))
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s\nexpires_at=%s\n", token, meta.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runHashSecret(c *cli.Context) error {
	hash, err := auth.HashSecret(c.String("secret"), 0)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
