package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/models"
)

// Entry file names. Each piece of state lives in its own file so one corrupt
// entry never blocks hydration of the others.
const (
	preferencesFile = "preferences.json"
	plansFile       = "plans.json"
	favoritesFile   = "favorites.json"
)

// Store is the local durable cache: three independent JSON snapshot entries
// under a state directory. It is exclusively owned by the state manager; no
// other component reads or writes it.
type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the state directory backing this store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) LoadPreferences() []models.Preference {
	return loadEntry[models.Preference](s, preferencesFile)
}

func (s *Store) SavePreferences(prefs []models.Preference) error {
	return s.saveEntry(preferencesFile, prefs)
}

func (s *Store) LoadPlans() []models.GeneratedPlan {
	return loadEntry[models.GeneratedPlan](s, plansFile)
}

func (s *Store) SavePlans(plans []models.GeneratedPlan) error {
	return s.saveEntry(plansFile, plans)
}

func (s *Store) LoadFavorites() []models.Favorite {
	return loadEntry[models.Favorite](s, favoritesFile)
}

func (s *Store) SaveFavorites(favs []models.Favorite) error {
	return s.saveEntry(favoritesFile, favs)
}

// loadEntry reads one snapshot entry. A missing or malformed entry hydrates
// to an empty sequence; corruption is logged, never propagated.
func loadEntry[T any](s *Store, name string) []T {
	path := filepath.Join(s.dir, name)
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read cache entry, starting empty",
				zap.String("entry", name), zap.Error(err))
		}
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		s.logger.Warn("Corrupt cache entry ignored, starting empty",
			zap.String("entry", name), zap.Error(err))
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// saveEntry writes through a temp file and renames it into place, so a crash
// mid-write never truncates the previous snapshot.
func (s *Store) saveEntry(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
