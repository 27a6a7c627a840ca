// Package app wires configuration, storage, the content area and the HTTP
// API into a runnable service.
package app

import (
	"context"
	"fmt"

	"github.com/emlhoward/chatterbox/internal/config"
	"github.com/emlhoward/chatterbox/internal/content"
	"github.com/emlhoward/chatterbox/internal/httpapi"
	"github.com/emlhoward/chatterbox/internal/observability"
	"github.com/emlhoward/chatterbox/internal/store"
)

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Store   store.Store
	Content *content.DiskStore
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	files, err := content.NewDiskStore(cfg.UploadDir)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("content store init failed: %w", err)
	}

	api := httpapi.New(cfg, st, files, metrics)

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Store:   st,
		Content: files,
		Metrics: metrics,
		Cleanup: st.Close,
	}, nil
}
