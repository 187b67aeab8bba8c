// Package history loads a migration directory into a validated, ordered
// chain. The chain is linear: exactly one initial migration, and every other
// active migration depends on exactly one predecessor. Migrations subsumed by
// a squash (listed in another migration's Replaces) may still sit on disk;
// they load fine but are excluded from the active chain.
package history

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// History is the result of loading a migration directory.
type History struct {
	// Migrations holds every successfully parsed migration, sorted by
	// numeric filename prefix.
	Migrations []*migration.Migration

	// Warnings lists files in the directory that were ignored because
	// their names do not match the migration filename pattern.
	Warnings []string
}

// Load reads every migration file under dir and validates the chain. A
// missing directory is an empty history, not an error. Files whose names do
// not match NNNN_slug.toml are skipped with a warning.
func Load(dir string) (*History, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{}, nil
		}
		return nil, sterr.Wrap(sterr.ErrParseFile, err, "failed to read migrations directory").
			WithFile(dir)
	}

	h := &History{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := migration.ParseFilename(name); !ok {
			h.Warnings = append(h.Warnings, name)
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, sterr.Wrap(sterr.ErrParseFile, err, "failed to read migration").
				WithFile(path)
		}
		m, err := migration.Deserialize(data, path)
		if err != nil {
			return nil, err
		}
		h.Migrations = append(h.Migrations, m)
	}

	sort.Slice(h.Migrations, func(i, j int) bool {
		return h.Migrations[i].ID < h.Migrations[j].ID
	})

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// validate checks the structural invariants of the active chain.
func (h *History) validate() error {
	active := h.Active()
	if len(active) == 0 {
		return nil
	}

	byID := make(map[string]*migration.Migration, len(active))
	var initial *migration.Migration
	for _, m := range active {
		if _, dup := byID[m.ID]; dup {
			return sterr.Newf(sterr.ErrBrokenChain, "duplicate migration id %q", m.ID)
		}
		byID[m.ID] = m

		if m.Initial {
			if initial != nil {
				return sterr.New(sterr.ErrMultipleInitial, "history contains more than one initial migration").
					With("first", initial.ID).
					With("second", m.ID).
					WithHelp("exactly one migration may set Initial = true with an empty Dependency")
			}
			if m.Dependency != "" {
				return sterr.Newf(sterr.ErrBrokenChain, "initial migration %q must have an empty dependency", m.ID).
					With("dependency", m.Dependency)
			}
			initial = m
		} else if m.Dependency == "" {
			return sterr.Newf(sterr.ErrBrokenChain, "migration %q has no dependency but is not initial", m.ID)
		}
	}
	if initial == nil {
		return sterr.New(sterr.ErrNoInitial, "history has migrations but no initial migration").
			WithHelp("the first migration must set Initial = true")
	}

	// Every non-initial active migration must depend on another active one,
	// and no two may share a dependency (the chain never forks).
	dependents := make(map[string]string, len(active))
	for _, m := range active {
		if m.Initial {
			continue
		}
		if _, ok := byID[m.Dependency]; !ok {
			return sterr.Newf(sterr.ErrBrokenChain, "migration %q depends on unknown migration %q", m.ID, m.Dependency).
				WithHelp("the dependency must name an active migration in the same directory")
		}
		if other, forked := dependents[m.Dependency]; forked {
			return sterr.Newf(sterr.ErrBrokenChain, "migrations %q and %q both depend on %q", other, m.ID, m.Dependency).
				WithHelp("the chain must be linear; merge or re-point one of the branches")
		}
		dependents[m.Dependency] = m.ID
	}

	// Walk from the initial migration; everything must be reachable.
	count := 1
	for cur := initial.ID; ; {
		next, ok := dependents[cur]
		if !ok {
			break
		}
		count++
		cur = next
	}
	if count != len(active) {
		return sterr.New(sterr.ErrBrokenChain, "history contains migrations unreachable from the initial migration").
			With("reachable", count).
			With("total", len(active))
	}

	return nil
}

// Active returns the migrations not subsumed by any migration's Replaces
// list, in chain order. Chain order usually coincides with filename order,
// but not always: a squash migration gets a fresh sequence number while the
// migrations re-pointed onto it keep theirs.
func (h *History) Active() []*migration.Migration {
	replaced := make(map[string]bool)
	for _, m := range h.Migrations {
		for _, id := range m.Replaces {
			replaced[id] = true
		}
	}

	var active []*migration.Migration
	for _, m := range h.Migrations {
		if !replaced[m.ID] {
			active = append(active, m)
		}
	}

	if ordered, ok := chainOrder(active); ok {
		return ordered
	}
	// Broken chains keep filename order so validate() can report on them.
	return active
}

// chainOrder walks the dependency chain from the initial migration. Returns
// false if the walk does not cover every migration exactly once.
func chainOrder(active []*migration.Migration) ([]*migration.Migration, bool) {
	byID := make(map[string]*migration.Migration, len(active))
	dependents := make(map[string]*migration.Migration, len(active))
	var initial *migration.Migration

	for _, m := range active {
		if _, dup := byID[m.ID]; dup {
			return nil, false
		}
		byID[m.ID] = m
		if m.Initial {
			if initial != nil {
				return nil, false
			}
			initial = m
			continue
		}
		if _, forked := dependents[m.Dependency]; forked {
			return nil, false
		}
		dependents[m.Dependency] = m
	}
	if initial == nil {
		return nil, false
	}

	ordered := make([]*migration.Migration, 0, len(active))
	for cur := initial; cur != nil; cur = dependents[cur.ID] {
		ordered = append(ordered, cur)
	}
	if len(ordered) != len(active) {
		return nil, false
	}
	return ordered, true
}

// Head returns the tip of the active chain: the migration no other active
// migration depends on. Returns nil for an empty history.
func (h *History) Head() *migration.Migration {
	active := h.Active()
	if len(active) == 0 {
		return nil
	}

	hasDependent := make(map[string]bool, len(active))
	for _, m := range active {
		if !m.Initial {
			hasDependent[m.Dependency] = true
		}
	}
	for _, m := range active {
		if !hasDependent[m.ID] {
			return m
		}
	}
	// validate() guarantees a linear chain, so this is unreachable.
	return active[len(active)-1]
}

// NextSequence returns the filename sequence number for the next migration:
// one past the highest sequence on disk, including replaced migrations.
func (h *History) NextSequence() int {
	max := 0
	for _, m := range h.Migrations {
		if seq := m.Sequence(); seq > max {
			max = seq
		}
	}
	return max + 1
}

// ByID returns the migration with the given ID, or nil.
func (h *History) ByID(id string) *migration.Migration {
	for _, m := range h.Migrations {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Write serializes a migration into dir using its ID as the filename stem.
func Write(dir string, m *migration.Migration) (string, error) {
	content, err := migration.Serialize(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", sterr.Wrap(sterr.ErrParseFile, err, "failed to create migrations directory").
			WithFile(dir)
	}
	path := filepath.Join(dir, migration.Filename(m.ID))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", sterr.Wrap(sterr.ErrParseFile, err, "failed to write migration").
			WithFile(path)
	}
	return path, nil
}
