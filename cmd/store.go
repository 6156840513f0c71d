package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/northpine/pwhl-sync/internal/hockeytech"
	"github.com/northpine/pwhl-sync/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "pwhl.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initFeed() *hockeytech.Client {
	return hockeytech.New(hockeytech.Options{
		BaseURL:      cfg.API.BaseURL,
		Key:          cfg.API.Key,
		ClientCode:   cfg.API.ClientCode,
		RateInterval: cfg.API.RateInterval(),
		MaxRetries:   cfg.API.MaxRetries,
		Timeout:      cfg.API.Timeout(),
	})
}
