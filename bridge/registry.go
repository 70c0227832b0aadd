package bridge

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/lcmbridge/logging"
	"go.viam.com/lcmbridge/translate"
	"go.viam.com/lcmbridge/utils"
)

// Dependencies are what a Factory builds a repeater from.
type Dependencies struct {
	Channel    string
	Translator *translate.Translator
	Logger     logging.Logger
	// Metrics is nil when no Prometheus registry is configured.
	Metrics *Metrics
}

// Factory builds the repeater of one translation kind.
type Factory func(deps Dependencies) (Runner, error)

var (
	registryMu   sync.RWMutex
	translations = map[string]Factory{}
)

// RegisterTranslation makes a translation kind available to the repeater table of the config.
// It panics if kind is already registered.
func RegisterTranslation(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := translations[kind]; ok {
		panic(utils.NewAlreadyRegisteredError("translation", kind))
	}
	if factory == nil {
		panic(errors.Errorf("cannot register a nil factory for translation %q", kind))
	}
	translations[kind] = factory
}

// DeregisterTranslation removes a previously registered kind.
func DeregisterTranslation(kind string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(translations, kind)
}

// LookupTranslation returns the factory of kind.
func LookupTranslation(kind string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := translations[kind]
	return factory, ok
}

// RegisteredTranslations returns the registered kinds in sorted order.
func RegisteredTranslations() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := lo.Keys(translations)
	sort.Strings(kinds)
	return kinds
}
