package main

import (
	"os"
	"time"

	"github.com/DRSN-tech/visual-search/internal/app"
	config "github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// version подставляется при сборке: -ldflags "-X main.version=<tag>".
var version = "dev"

func main() {
	os.Exit(run(logger.NewSlogLogger()))
}

func run(log logger.Logger) int {
	started := time.Now()
	log.Infof("visual-search %s starting (pid %d)", version, os.Getpid())

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		return 1
	}
	log.Infof("config loaded: store=%s model=%s search limit=%d min similarity=%.2f",
		cfg.Store.Driver, cfg.Backbone.ModelName, cfg.Search.Limit, cfg.Search.MinSimilarity)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		return 1
	}

	if err := application.Run(); err != nil {
		log.Errorf(err, "visual-search stopped with error after %s", time.Since(started).Round(time.Second))
		return 1
	}

	log.Infof("visual-search stopped after %s", time.Since(started).Round(time.Second))
	return 0
}
