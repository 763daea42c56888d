package cli

import (
	"context"
	"fmt"

	"github.com/centrosedu/centros/engine/centers"
	"github.com/centrosedu/centros/engine/controller"
	"github.com/centrosedu/centros/engine/pagecache"
	"github.com/centrosedu/centros/pkg/config"
	"github.com/centrosedu/centros/pkg/logger"
)

// app holds the collaborators a command needs, built from configuration.
type app struct {
	cfg    *config.Config
	client *centers.Client
	cache  *pagecache.Cache[*centers.Page]
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.FromContext(ctx)
	client, err := centers.NewClient(centers.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.RetryCount,
		Debug:      cfg.Log.Level == string(logger.DebugLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create centers client: %w", err)
	}
	cache, err := pagecache.New[*centers.Page](
		pagecache.WithTTL(cfg.Cache.TTL),
		pagecache.WithCapacity(cfg.Cache.Capacity),
		pagecache.WithPrefetchConcurrency(cfg.Cache.PrefetchConcurrency),
	)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, client: client, cache: cache}, nil
}

func (a *app) controller(renderer controller.Renderer) (*controller.Controller, error) {
	return controller.New(a.client, renderer, a.cache, controller.Config{
		Mode:            controller.Mode(a.cfg.Query.Mode),
		RowsPerPage:     a.cfg.Query.RowsPerPage,
		PrefetchDepth:   a.cfg.Cache.PrefetchDepth,
		FullDatasetSize: a.cfg.Query.FullDatasetSize,
		NumericFields:   a.cfg.Query.NumericFields,
	})
}
