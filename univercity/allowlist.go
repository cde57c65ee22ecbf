package univercity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml"
)

// ErrAllowlistUnavailable is returned when an Allowlist method is called
// on a nil *Allowlist.
var ErrAllowlistUnavailable = errors.New("univercity: allowlist not configured")

// Allowlist controls which players may join, keyed by account name rather
// than ids.PlayerId (which is only assigned once a player is accepted).
// Entries persist to a TOML file: LoadAllowlist reads it, and every Add
// or Remove that changes the set rewrites it in full.
type Allowlist struct {
	mu       sync.RWMutex
	players  map[string]string
	filePath string
	enabled  bool
}

type allowlistFile struct {
	Players []string `toml:"players"`
}

// LoadAllowlist loads (or creates) the allowlist file at path.
func LoadAllowlist(path string) (*Allowlist, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("univercity: allowlist path must not be empty")
	}
	a := &Allowlist{players: make(map[string]string), filePath: path}
	if err := a.reloadFromDisk(); err != nil {
		return nil, err
	}
	return a, nil
}

// Enabled reports whether the allowlist is currently enforced.
func (a *Allowlist) Enabled() bool {
	if a == nil {
		return false
	}
	return a.enabled
}

// SetEnabled toggles enforcement without touching the stored entries.
func (a *Allowlist) SetEnabled(enabled bool) {
	if a == nil {
		return
	}
	a.enabled = enabled
}

// Allow reports whether name may join, and a reason to show the client
// when it may not.
func (a *Allowlist) Allow(name string) (reason string, ok bool) {
	if a == nil || !a.enabled {
		return "", true
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "you are not on the allowlist", false
	}
	a.mu.RLock()
	_, present := a.players[normalizePlayerName(name)]
	a.mu.RUnlock()
	if !present {
		return "you are not on the allowlist", false
	}
	return "", true
}

// Add inserts name, reporting whether it was newly added.
func (a *Allowlist) Add(name string) (bool, error) {
	if a == nil {
		return false, ErrAllowlistUnavailable
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false, fmt.Errorf("univercity: invalid player name %q", name)
	}
	key := normalizePlayerName(trimmed)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.players[key]; exists {
		return false, nil
	}
	a.players[key] = trimmed
	if err := a.writeLocked(); err != nil {
		delete(a.players, key)
		return false, err
	}
	return true, nil
}

// Remove deletes name, reporting whether it was present.
func (a *Allowlist) Remove(name string) (bool, error) {
	if a == nil {
		return false, ErrAllowlistUnavailable
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false, fmt.Errorf("univercity: invalid player name %q", name)
	}
	key := normalizePlayerName(trimmed)

	a.mu.Lock()
	defer a.mu.Unlock()
	original, exists := a.players[key]
	if !exists {
		return false, nil
	}
	delete(a.players, key)
	if err := a.writeLocked(); err != nil {
		a.players[key] = original
		return false, err
	}
	return true, nil
}

// Players returns every entry in case-insensitive sorted order.
func (a *Allowlist) Players() []string {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.players))
	for _, name := range a.players {
		names = append(names, name)
	}
	sortPlayerNames(names)
	return names
}

func (a *Allowlist) reloadFromDisk() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var data allowlistFile
	contents, err := os.ReadFile(a.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.players = make(map[string]string)
			return a.writeLocked()
		}
		return fmt.Errorf("univercity: read allowlist: %w", err)
	}
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("univercity: decode allowlist: %w", err)
		}
	}
	a.players = make(map[string]string, len(data.Players))
	for _, name := range data.Players {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		a.players[normalizePlayerName(trimmed)] = trimmed
	}
	return nil
}

func (a *Allowlist) writeLocked() error {
	if dir := filepath.Dir(a.filePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("univercity: create allowlist directory: %w", err)
		}
	}
	names := make([]string, 0, len(a.players))
	for _, name := range a.players {
		names = append(names, name)
	}
	sortPlayerNames(names)
	encoded, err := toml.Marshal(allowlistFile{Players: names})
	if err != nil {
		return fmt.Errorf("univercity: encode allowlist: %w", err)
	}
	return os.WriteFile(a.filePath, encoded, 0o644)
}

func sortPlayerNames(names []string) {
	slices.SortFunc(names, func(x, y string) int {
		lx, ly := strings.ToLower(x), strings.ToLower(y)
		if lx == ly {
			return strings.Compare(x, y)
		}
		return strings.Compare(lx, ly)
	})
}

func normalizePlayerName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
