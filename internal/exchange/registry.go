package exchange

import "github.com/aristath/inarbit/internal/apperr"

// Registry looks up a configured Adapter by exchange name, mirroring the
// teacher's pattern of a broker-adapter constructed once at wiring time
// and shared across services.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a Registry from a fixed set of adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for exchange, or a NotFound error if the
// ingestor/scanner/OMS references an exchange nothing was wired for.
func (r *Registry) Get(exchange string) (Adapter, error) {
	a, ok := r.adapters[exchange]
	if !ok {
		return nil, apperr.NotFoundf("no adapter configured for exchange %q", exchange)
	}
	return a, nil
}

// Names returns every configured exchange name. The ingestor does not
// use it; it fans out over the exchanges named in its own symbol config.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
