package pool

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Backend turns a DSN into a Connector. Backend packages register one in init.
type Backend struct {
	Dialect      Dialect
	NewConnector func(dsn string) (Connector, error)
}

var backends = struct {
	sync.RWMutex
	m map[string]Backend
}{m: make(map[string]Backend)}

// Register makes a backend available by the provided name.
// If Register is called twice with the same name or if NewConnector is nil, it panics.
func Register(name string, backend Backend) {
	if backend.NewConnector == nil {
		panic("pool: Register backend without a connector constructor")
	}

	name = strings.ToLower(name)

	backends.Lock()
	defer backends.Unlock()
	if _, dup := backends.m[name]; dup {
		panic("pool: Register called twice for backend " + name)
	}

	backends.m[name] = backend
}

// Backends returns a sorted list of the names of the registered backends.
func Backends() []string {
	backends.RLock()
	defer backends.RUnlock()

	list := make([]string, 0, len(backends.m))
	for name := range backends.m {
		list = append(list, name)
	}
	sort.Strings(list)

	return list
}

// Open creates a Pool from config, using the backend registered under config.Dialect.
func Open(config *PoolConfig) (*Pool, error) {
	return OpenWithHandlers(config, nil, nil)
}

// OpenWithHandlers creates a Pool from config with an error and/or unhealthy handler.
func OpenWithHandlers(config *PoolConfig, errorHandler func(error), unhealthyHandler func(error)) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	backends.RLock()
	backend, ok := backends.m[strings.ToLower(config.Dialect)]
	backends.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (forgotten import?)", ErrUnknownBackend, config.Dialect)
	}

	connector, err := backend.NewConnector(config.DSN)
	if err != nil {
		return nil, &BackendError{Op: "configure", Err: err}
	}

	return NewPoolWithHandlers(config, connector, backend.Dialect, errorHandler, unhealthyHandler)
}
