package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"gocast/adapters/excel"
	"gocast/adapters/postgres"
	"gocast/adapters/tuner"
	"gocast/app"
	"gocast/internal"
	"gocast/internal/config"
	"gocast/internal/errors"
	"gocast/ports"
	"gocast/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewDefaultLogger()

	store, err := initStore(appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize panel store: %v", err)
	}

	service := app.NewForecastService(store, excel.NewReportWriter(), tuner.NewRandomSearch(0), logger)

	httpApp := ui.NewApp(appConfig, service, logger)
	if err := httpApp.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// initStore connects the optional PostgreSQL panel store
func initStore(appConfig *config.Config) (ports.PanelStore, error) {
	if !appConfig.Database.Enabled {
		return nil, nil
	}

	db, err := postgres.Connect(appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "schema setup failed")
	}
	return postgres.NewPanelStore(db), nil
}
