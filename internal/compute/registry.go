package compute

import (
	"fmt"
	"sort"
	"sync"

	"nathanbeddoewebdev/mcfleet/internal/auth"
	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/util"
)

// Settings identifies the host instance for every provider.
type Settings struct {
	GCEProject         string
	GCEZone            string
	GCEInstance        string
	GCECredentialsFile string
	HetznerServerID    int64
}

type Factory func(settings Settings, store auth.Store) (domain.ComputeProvider, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, factory Factory) {
	normalizedName := util.NormalizeKey(name)
	if normalizedName == "" {
		panic("compute: empty provider name")
	}
	if factory == nil {
		panic("compute: nil factory")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[normalizedName]; exists {
		panic(fmt.Sprintf("compute: provider %q already registered", name))
	}
	registry[normalizedName] = factory
}

func Get(name string, settings Settings, store auth.Store) (domain.ComputeProvider, error) {
	normalizedName := util.NormalizeKey(name)
	mu.RLock()
	factory, ok := registry[normalizedName]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("compute: unknown provider %q", name)
	}
	return factory(settings, store)
}

// Reset clears the provider registry. Intended for use in tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]Factory{}
}

func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultsMu sync.Mutex

// RegisterDefaults registers each built-in provider that is not already
// registered. It is safe to call repeatedly, including after Reset.
func RegisterDefaults() {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()

	defaults := []struct {
		name     string
		register func()
	}{
		{"gce", RegisterGCE},
		{"hetzner", RegisterHetzner},
	}
	for _, d := range defaults {
		if !registered(d.name) {
			d.register()
		}
	}
}

func registered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[util.NormalizeKey(name)]
	return ok
}
