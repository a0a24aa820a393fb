package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/visual-search/internal/app"
	config "github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/spf13/cobra"
)

var debug bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "simctl",
		Short:         "Visual search command line tool",
		Long:          "simctl seeds the product catalog, warms the feature cache and runs similarity searches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(newSeedCmd(), newWarmCmd(), newSearchCmd(), newProductsCmd())

	if err := rootCmd.Execute(); err != nil {
		showError(err)
		os.Exit(1)
	}
}

func newLogger() logger.Logger {
	level := os.Getenv("LOG_LEVEL")
	if debug {
		level = "debug"
	} else if level == "" {
		level = "warn"
	}

	return logger.NewSlogLoggerWithWriter(os.Stderr, level)
}

// withContainer собирает зависимости, выполняет fn и закрывает ресурсы.
// Без STORE_DRIVER CLI работает с локальной SQLite.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	if os.Getenv("STORE_DRIVER") == "" {
		os.Setenv("STORE_DRIVER", config.StoreDriverSQLite)
	}

	log := newLogger()
	cfg, err := config.LoadLocal(log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Closer.Close(closeCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()

	return fn(ctx, c)
}

// initBackbone синхронно загружает модель: CLI не может работать без неё.
func initBackbone(ctx context.Context, c *app.Container) error {
	initCtx, cancel := context.WithTimeout(ctx, c.Config.Backbone.InitTimeout)
	defer cancel()

	showInfo("Loading model %s...", c.Backbone.Name())
	return c.Backbone.Init(initCtx)
}
