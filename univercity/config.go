// Package univercity wires together the core packages into a runnable
// server: the tick scheduler, session manager, keep-alive, pathfinding
// worker pool and file-backed configuration.
package univercity

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml"
)

// Config contains the options used to start a server. Fields left at
// their zero value fall back to a documented default rather than
// failing to start, matching the teacher's Config.
type Config struct {
	// Log is the Logger to use for logging. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Name is shown to clients before and after joining.
	Name string
	// Address is the local address the two wire.Listener lanes bind to.
	Address string
	// MaxPlayers is the maximum number of concurrently connected
	// players. Zero means unlimited.
	MaxPlayers int
	// TickRate is how many ticks the server runs per second. Zero
	// defaults to 30.
	TickRate int
	// SaveDirectory is where .usav save files are written and read.
	// Empty defaults to "saves" relative to the working directory.
	SaveDirectory string
	// PathfindingWorkers bounds how many goroutines the pathfinding pool
	// runs concurrently. Zero defaults to runtime.GOMAXPROCS(0).
	PathfindingWorkers int
	// StartingBalance is the account balance a newly joined player is
	// given. Zero defaults to 10000.
	StartingBalance int64
}

// fileConfig mirrors Config's on-disk TOML representation. Kept
// distinct from Config (rather than adding toml tags to it directly) so
// Config can carry non-serialisable fields like Log without those
// leaking into the file format.
type fileConfig struct {
	Name               string `toml:"name"`
	Address            string `toml:"address"`
	MaxPlayers         int    `toml:"max_players"`
	TickRate           int    `toml:"tick_rate"`
	SaveDirectory      string `toml:"save_directory"`
	PathfindingWorkers int    `toml:"pathfinding_workers"`
	StartingBalance    int64  `toml:"starting_balance"`
}

// DefaultConfig returns a Config with every field set to its documented
// default, suitable for writing out as a starting point for an operator
// to edit.
func DefaultConfig() Config {
	return Config{
		Log:                slog.Default(),
		Name:               "A UniverCity Server",
		Address:            ":19132",
		MaxPlayers:         32,
		TickRate:           30,
		SaveDirectory:      "saves",
		PathfindingWorkers: 0,
		StartingBalance:    10000,
	}
}

// LoadConfig reads a Config from a TOML file at path, creating it with
// DefaultConfig's values (serialised) if it does not yet exist, exactly
// as the teacher's whitelist does for its own file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		def := DefaultConfig()
		if err := writeConfig(path, def); err != nil {
			return Config{}, fmt.Errorf("univercity: write default config: %w", err)
		}
		return def, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("univercity: read config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("univercity: parse config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Name = fc.Name
	cfg.Address = fc.Address
	if fc.MaxPlayers != 0 {
		cfg.MaxPlayers = fc.MaxPlayers
	}
	if fc.TickRate != 0 {
		cfg.TickRate = fc.TickRate
	}
	if fc.SaveDirectory != "" {
		cfg.SaveDirectory = fc.SaveDirectory
	}
	cfg.PathfindingWorkers = fc.PathfindingWorkers
	if fc.StartingBalance != 0 {
		cfg.StartingBalance = fc.StartingBalance
	}
	return cfg, nil
}

func writeConfig(path string, cfg Config) error {
	fc := fileConfig{
		Name:               cfg.Name,
		Address:            cfg.Address,
		MaxPlayers:         cfg.MaxPlayers,
		TickRate:           cfg.TickRate,
		SaveDirectory:      cfg.SaveDirectory,
		PathfindingWorkers: cfg.PathfindingWorkers,
		StartingBalance:    cfg.StartingBalance,
	}
	data, err := toml.Marshal(fc)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
