package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authgate/idgate/internal/config"
	"github.com/go-authgate/idgate/internal/store"
)

// initializeDatabase opens the database behind the database identity store
func initializeDatabase(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Printf("Database initialized (driver: %s)", cfg.DatabaseDriver)
	return db, nil
}

// OpenDatabase is initializeDatabase for the command line tools.
func OpenDatabase(cfg *config.Config) (*store.Store, error) {
	return initializeDatabase(cfg)
}
