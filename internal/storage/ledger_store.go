package storage

import (
	"context"
	"fmt"
	"strings"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/storage/memory"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/storage/postgres"
	"github.com/sheikh-saqib/split-ledger-gateway/internal/storage/sqlite"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures the ledger backend.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the LedgerStore named by opts.Driver.
func Open(ctx context.Context, opts Options) (interfaces.LedgerStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverSQLite, "":
		store, err := sqlite.Open(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		store, err := postgres.Open(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memory.NewMemoryLedgerStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}
}
