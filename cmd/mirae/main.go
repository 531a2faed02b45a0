// Command mirae runs a document session over pages and folders stored in a
// local SQLite database.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/mirae/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mirae/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mirae/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// MIRAE_HOME relocates both the config file and the database.
	configDir, dataDir := "", ""
	if home := os.Getenv("MIRAE_HOME"); home != "" {
		configDir = home
		dataDir = filepath.Join(home, "data")
	}

	device, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	cli.SetVersion(version)
	cli.SetRuntime(&cli.Runtime{
		Store:  store.EntityStore(),
		Device: device,
	})
	return cli.Execute()
}
