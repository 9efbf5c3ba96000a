// Package plugins maps configuration names to baseline providers and
// environment feeds.
package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/solaris/config"
	"github.com/kilianp07/solaris/core/driver"
	"github.com/kilianp07/solaris/core/farm"
)

// ProviderFactory builds a baseline provider from its configuration.
type ProviderFactory func(cfg config.BaselineConfig) (farm.Provider, error)

// FeedFactory builds an environment feed from its configuration.
type FeedFactory func(cfg config.WeatherConfig) (driver.EnvironmentFeed, error)

var (
	mu        sync.RWMutex
	providers = map[string]ProviderFactory{}
	feeds     = map[string]FeedFactory{}
)

func RegisterProvider(name string, f ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = f
}

func RegisterFeed(name string, f FeedFactory) {
	mu.Lock()
	defer mu.Unlock()
	feeds[name] = f
}

// NewProvider builds the provider named by cfg.Model.
func NewProvider(cfg config.BaselineConfig) (farm.Provider, error) {
	mu.RLock()
	f, ok := providers[cfg.Model]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown baseline model %q", cfg.Model)
	}
	return f(cfg)
}

// NewFeed builds the feed named by cfg.Source.
func NewFeed(cfg config.WeatherConfig) (driver.EnvironmentFeed, error) {
	mu.RLock()
	f, ok := feeds[cfg.Source]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown weather source %q", cfg.Source)
	}
	return f(cfg)
}

// Providers lists the registered provider names.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedKeys(providers)
}

// Feeds lists the registered feed names.
func Feeds() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedKeys(feeds)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
