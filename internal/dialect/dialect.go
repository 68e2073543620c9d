package dialect

import (
	"fmt"
	"sort"
	"strings"

	"loom/internal/services"
	"loom/internal/timeline"
)

// Adapter converts between a wire dialect and the in-memory timeline model.
// Serialize(Parse(b)) must be semantically equivalent to b: same structure,
// same exact times, with unrecognized elements passed through opaquely.
type Adapter interface {
	Name() string
	Parse(data []byte) (*timeline.Timeline, error)
	Serialize(tl *timeline.Timeline) ([]byte, error)
}

// Options tunes adapter behavior.
type Options struct {
	// LossyTiming permits the track dialect to round times that have no
	// exact millisecond clock representation instead of failing with a
	// precision-loss error.
	LossyTiming bool
}

// Factory builds an adapter with the given options.
type Factory func(Options) Adapter

var registry = map[string]Factory{}

// Register installs a dialect factory under a name. Dialect packages call
// this from init.
func Register(name string, factory Factory) {
	registry[strings.ToLower(name)] = factory
}

// For returns the adapter registered for the dialect name.
func For(name string, opts Options) (Adapter, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "dialect", "lookup",
			fmt.Sprintf("unknown dialect %q (supported: %s)", name, strings.Join(Names(), ", ")), nil)
	}
	return factory(opts), nil
}

// Names lists registered dialect names in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
