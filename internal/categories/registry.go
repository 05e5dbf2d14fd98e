// Package categories keeps the client-local list of transaction categories
// and resolves their display icons.
package categories

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/talkcents/talkcents/internal/model"
)

var (
	ErrEmptyName = errors.New("category name must not be blank")
	ErrDuplicate = errors.New("category already exists")
)

// Registry is an ordered, case-insensitively unique set of categories.
type Registry struct {
	mu     sync.RWMutex
	cats   []model.Category
	byName map[string]int // lower-cased name -> index into cats
}

// NewRegistry creates a Registry seeded with cats. Later duplicates are
// merged into the first occurrence using Register's upsert rule.
func NewRegistry(cats []model.Category) *Registry {
	r := &Registry{byName: make(map[string]int, len(cats))}
	for _, c := range cats {
		_, _ = r.Register(c.Name, c.Icon)
	}
	return r
}

// Load reads a category CSV file and returns a Registry seeded with seeds
// (Defaults when none are given) followed by the file's rows. A missing
// file is not an error.
func Load(path string, seeds ...model.Category) (*Registry, error) {
	if len(seeds) == 0 {
		seeds = Defaults()
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewRegistry(seeds), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening categories: %w", err)
	}
	defer f.Close()

	cats, err := ReadCategories(f)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	all := append(append([]model.Category(nil), seeds...), cats...)
	return NewRegistry(all), nil
}

// Save writes every registered category to path as CSV.
func (r *Registry) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating categories dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating categories file: %w", err)
	}
	if err := WriteCategories(f, r.All()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing categories: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing categories file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing categories file: %w", err)
	}
	return nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResolveIcon returns the icon registered for name, matched
// case-insensitively, or "" when the name is unknown.
func (r *Registry) ResolveIcon(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.byName[key(name)]; ok {
		return r.cats[i].Icon
	}
	return ""
}

// Register upserts a category. A new name is appended. An existing name
// keeps its position and spelling; its icon is replaced only when icon is
// non-empty.
func (r *Registry) Register(name, icon string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, ErrEmptyName
	}
	icon = strings.TrimSpace(icon)

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byName[key(name)]; ok {
		if icon != "" {
			r.cats[i].Icon = icon
		}
		return r.cats[i], nil
	}
	c := model.Category{Name: name, Icon: icon}
	r.byName[key(name)] = len(r.cats)
	r.cats = append(r.cats, c)
	return c, nil
}

// Add registers a brand-new category and fails with ErrDuplicate when the
// name is already taken in any letter case.
func (r *Registry) Add(name, icon string) (model.Category, error) {
	if strings.TrimSpace(name) == "" {
		return model.Category{}, ErrEmptyName
	}
	if _, ok := r.Get(name); ok {
		return model.Category{}, fmt.Errorf("%q: %w", strings.TrimSpace(name), ErrDuplicate)
	}
	return r.Register(name, icon)
}

// Remove deletes a category by name. It reports whether anything was removed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byName[key(name)]
	if !ok {
		return false
	}
	r.cats = append(r.cats[:i], r.cats[i+1:]...)
	delete(r.byName, key(name))
	for j := i; j < len(r.cats); j++ {
		r.byName[key(r.cats[j].Name)] = j
	}
	return true
}

// Get returns a category by case-insensitive name.
func (r *Registry) Get(name string) (model.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[key(name)]
	if !ok {
		return model.Category{}, false
	}
	return r.cats[i], true
}

// All returns a copy of the categories in insertion order.
func (r *Registry) All() []model.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Category(nil), r.cats...)
}

// Len returns the number of registered categories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cats)
}
