// Package kernel resolves controller and service identifiers to live
// instances. It stands in for a dependency-injection container: factories
// are bound by identifier and each identifier is constructed at most once
// per kernel.
package kernel

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotBound is returned when no factory is bound for an identifier.
	ErrNotBound = errors.New("identifier not bound")
	// ErrWrongType is returned by ResolveAs when the instance has another type.
	ErrWrongType = errors.New("resolved instance has unexpected type")
	// ErrCycle is returned when a factory depends on itself.
	ErrCycle = errors.New("dependency cycle")
)

// Resolver returns a live instance for an identifier.
type Resolver interface {
	Resolve(id string) (any, error)
}

// Factory constructs the instance for an identifier. It may resolve its
// own dependencies through r.
type Factory func(r Resolver) (any, error)

// binding is the per-identifier construction state.
type binding struct {
	factory  Factory
	instance any
	built    bool
	ready    chan struct{} // non-nil while the factory runs
	owner    *construction // the construction running the factory
}

// construction is one top-level Resolve call and everything its factories
// resolve on the same goroutine. waiting is the binding it is blocked on.
type construction struct {
	waiting *binding
}

// Kernel is a Resolver with singleton-per-kernel semantics. Successful
// constructions are cached; failures are not, so a later call retries.
type Kernel struct {
	mu       sync.Mutex
	bindings map[string]*binding
}

// New creates an empty kernel.
func New() *Kernel {
	return &Kernel{bindings: make(map[string]*binding)}
}

// Bind registers the factory for id, replacing any previous binding and
// dropping its cached instance.
func (k *Kernel) Bind(id string, f Factory) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.bindings[id] = &binding{factory: f}
}

// BindValue binds id to an already constructed value.
func (k *Kernel) BindValue(id string, v any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.bindings[id] = &binding{instance: v, built: true}
}

// IsBound reports whether id has a binding.
func (k *Kernel) IsBound(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.bindings[id]
	return ok
}

// IDs returns the bound identifiers, sorted.
func (k *Kernel) IDs() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]string, 0, len(k.bindings))
	for id := range k.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the instance for id, constructing it on first use.
// Concurrent first calls wait for a single construction. Factories on
// different goroutines that wait on each other get ErrCycle instead of
// blocking forever.
func (k *Kernel) Resolve(id string) (any, error) {
	return k.resolve(id, nil, &construction{})
}

func (k *Kernel) resolve(id string, stack []string, self *construction) (any, error) {
	for _, s := range stack {
		if s == id {
			return nil, fmt.Errorf("resolve %q via %v: %w", id, stack, ErrCycle)
		}
	}

	for {
		k.mu.Lock()
		b, ok := k.bindings[id]
		if !ok {
			k.mu.Unlock()
			return nil, fmt.Errorf("resolve %q: %w", id, ErrNotBound)
		}
		if b.built {
			v := b.instance
			k.mu.Unlock()
			return v, nil
		}
		if b.ready != nil {
			if k.waitsOnLocked(b, self) {
				k.mu.Unlock()
				return nil, fmt.Errorf("resolve %q: constructions wait on each other: %w", id, ErrCycle)
			}
			wait := b.ready
			self.waiting = b
			k.mu.Unlock()
			<-wait
			k.mu.Lock()
			self.waiting = nil
			k.mu.Unlock()
			continue
		}
		b.ready = make(chan struct{})
		b.owner = self
		k.mu.Unlock()

		v, err := k.build(b, append(stack[:len(stack):len(stack)], id), self)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", id, err)
		}
		return v, nil
	}
}

// waitsOnLocked reports whether blocking self on b would deadlock: the
// construction running b is, through its own waits, blocked on self.
func (k *Kernel) waitsOnLocked(b *binding, self *construction) bool {
	seen := make(map[*construction]bool)
	for b != nil && b.owner != nil {
		owner := b.owner
		if owner == self {
			return true
		}
		if seen[owner] {
			return false
		}
		seen[owner] = true
		b = owner.waiting
	}
	return false
}

// build runs the factory unlocked so it can resolve its own dependencies.
// Waiters are released even if the factory panics.
func (k *Kernel) build(b *binding, stack []string, self *construction) (v any, err error) {
	finished := false
	defer func() {
		k.mu.Lock()
		if finished && err == nil {
			b.instance = v
			b.built = true
		}
		close(b.ready)
		b.ready = nil
		b.owner = nil
		k.mu.Unlock()
	}()

	v, err = b.factory(&chain{kernel: k, stack: stack, self: self})
	finished = true
	return v, err
}

// chain is the Resolver handed to factories; it remembers which
// identifiers are under construction to detect cycles.
type chain struct {
	kernel *Kernel
	stack  []string
	self   *construction
}

func (c *chain) Resolve(id string) (any, error) {
	return c.kernel.resolve(id, c.stack, c.self)
}

// ResolveAs resolves id and asserts the instance to T.
func ResolveAs[T any](r Resolver, id string) (T, error) {
	var zero T
	v, err := r.Resolve(id)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resolve %q: got %T, want %T: %w", id, v, zero, ErrWrongType)
	}
	return t, nil
}

var (
	defaultMu     sync.Mutex
	defaultKernel *Kernel
)

// Default returns the process kernel for the current epoch, creating it on
// first use.
func Default() *Kernel {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultKernel == nil {
		defaultKernel = New()
	}
	return defaultKernel
}

// Refresh discards the process kernel and its cached instances. Later calls
// to Default return the new kernel. Not safe while requests are in flight.
func Refresh() *Kernel {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultKernel = New()
	return defaultKernel
}
