package lock

import "sync"

// Registry hands out one Locker per key (typically owner/project), creating
// them on first use with the supplied factory.
type Registry struct {
	mu      sync.Mutex
	locks   map[string]Locker
	factory func(key string) (Locker, error)
}

// NewRegistry returns a registry of in-process mutexes.
func NewRegistry() *Registry {
	return NewRegistryWith(func(string) (Locker, error) { return NewMutex(), nil })
}

// NewRegistryWith returns a registry that builds lockers with factory.
func NewRegistryWith(factory func(key string) (Locker, error)) *Registry {
	return &Registry{locks: make(map[string]Locker), factory: factory}
}

// For returns the Locker for key.
func (r *Registry) For(key string) (Locker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.locks[key]; ok {
		return l, nil
	}
	l, err := r.factory(key)
	if err != nil {
		return nil, err
	}
	r.locks[key] = l
	return l, nil
}

// Key joins owner and project into a registry key.
func Key(owner, project string) string {
	return owner + "/" + project
}
