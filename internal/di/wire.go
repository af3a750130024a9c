package di

import (
	"context"
	"fmt"

	"github.com/aristath/inarbit/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes every collaborator in dependency order - databases,
// then repositories, then services, then background jobs - cleaning up
// already-opened resources if a later stage fails.
//
// Order of operations:
//  1. InitializeDatabases
//  2. InitializeRepositories
//  3. InitializeServices
//  4. RegisterJobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("initialize repositories: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	if err := RegisterJobs(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	log.Info().Msg("dependency injection wiring completed")
	return container, nil
}
