package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/example/food-order-service/internal/adapter/pgstore"
	"github.com/example/food-order-service/internal/config"
	"github.com/example/food-order-service/internal/logger"
)

const serviceName = "food-order-service"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "server",
		Usage: "vendor order queues with realtime pending counts",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API, the queue feed and order intake",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides HTTP_ADDR)"},
					&cli.StringFlag{Name: "store", Usage: "store driver: mongo, postgres or memory (overrides STORE_DRIVER)"},
					&cli.StringFlag{Name: "log-level", Usage: "log level (overrides LOG_LEVEL)"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					log, err := logger.New(serviceName, cfg.LogLevel, logFormat(cfg), os.Stdout)
					if err != nil {
						return err
					}
					return serve(c.Context, cfg, log)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply Postgres migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "database-url", Usage: "Postgres URL (overrides DATABASE_URL)"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					return pgstore.Migrate(cfg.DatabaseURL)
				},
			},
		},
	}
}

// loadConfig читает окружение и накладывает флаги команды.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("addr") {
		cfg.HTTPAddr = c.String("addr")
	}
	if c.IsSet("store") {
		cfg.StoreDriver = c.String("store")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("database-url") {
		cfg.DatabaseURL = c.String("database-url")
	}
	return cfg, cfg.Validate()
}

func logFormat(cfg config.Config) string {
	if cfg.Debug {
		return logger.FormatText
	}
	return cfg.LogFormat
}
