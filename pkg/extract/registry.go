// Strategy registry. Platform packages install themselves via Register in
// an init() function; lookup is by detector platform id, so registration
// order never matters.

package extract

import (
	"sync"

	"github.com/codeGROOVE-dev/magpie/pkg/linkurl"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Strategy)
)

// Register adds a strategy to the global registry. It panics on duplicate
// names, which would indicate two packages claiming one platform.
func Register(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := s.Name()
	if _, exists := registry[name]; exists {
		panic("strategy already registered: " + name)
	}
	registry[name] = s
}

// Lookup returns the strategy for a platform id, or nil.
func Lookup(name string) Strategy {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Names returns the registered platform ids.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ForURL detects the platform of a URL and returns the matching strategy
// along with the detection result. A nil strategy means the URL matched no
// supported platform (detection still reports what it saw).
func ForURL(rawURL string) (Strategy, linkurl.Detected) {
	d := linkurl.Detect(rawURL)
	if !d.IsValid {
		return nil, d
	}
	s := Lookup(d.Platform)
	if s == nil {
		// Valid URL on a platform without a dedicated strategy: the
		// website catch-all handles it when registered.
		s = Lookup("website")
	}
	if s != nil && !s.Validate(d.CanonicalURL) {
		return nil, d
	}
	return s, d
}
