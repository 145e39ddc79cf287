package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dmitrymomot/eventbridge/core/logger"
)

// Registry holds backend descriptors and resolves the single active backend.
//
// Descriptors are registered during process initialization. The first call to
// Resolve freezes the registry and memoizes its result, so every caller shares
// the same backend instance for the lifetime of the process.
type Registry struct {
	mu          sync.Mutex
	descriptors []Descriptor
	memory      Descriptor
	options     Options
	logger      *slog.Logger
	frozen      bool

	once     sync.Once
	resolved Backend
	name     string
	err      error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for selection messages and passed to factories.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTopic sets the topic passed to factories. Empty values are ignored.
func WithTopic(topic string) RegistryOption {
	return func(r *Registry) {
		if topic != "" {
			r.options.Topic = topic
		}
	}
}

// WithMemoryDescriptor replaces the built-in fallback, e.g. to change its capacity.
func WithMemoryDescriptor(d Descriptor) RegistryOption {
	return func(r *Registry) {
		if d.Factory != nil {
			r.memory = Descriptor{Name: MemoryBackendName, Factory: d.Factory}
		}
	}
}

// NewRegistry creates an empty registry that knows only the memory backend.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		memory:  MemoryDescriptor(),
		options: Options{Topic: DefaultTopic},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.options.Logger = r.logger
	return r
}

// NewRegistryFromConfig creates a registry using cfg's topic and memory capacity.
func NewRegistryFromConfig(cfg Config, opts ...RegistryOption) *Registry {
	configOpts := []RegistryOption{
		WithTopic(cfg.Topic),
		WithMemoryDescriptor(MemoryDescriptor(WithCapacity(cfg.MemoryCapacity))),
	}
	return NewRegistry(append(configOpts, opts...)...)
}

// Register adds a descriptor. Names are unique and "memory" is reserved.
func (r *Registry) Register(d Descriptor) error {
	name := strings.TrimSpace(d.Name)
	if name == "" || d.Factory == nil {
		return fmt.Errorf("%w: name and factory are required", ErrInvalidDescriptor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if name == MemoryBackendName {
		return fmt.Errorf("%w: %q is reserved", ErrDuplicateBackend, name)
	}
	for _, existing := range r.descriptors {
		if existing.Name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateBackend, name)
		}
	}

	r.descriptors = append(r.descriptors, Descriptor{Name: name, Factory: d.Factory})
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(descriptors ...Descriptor) {
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Names lists registered backends in registration order, without the built-in memory backend.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		names = append(names, d.Name)
	}
	return names
}

// Resolve picks the active backend:
//  1. the explicitly named backend, failing if it is not registered;
//  2. otherwise the first registered non-memory backend;
//  3. otherwise the memory backend, with a warning.
//
// Resolution runs once. Later calls return the same backend, name and error.
func (r *Registry) Resolve(ctx context.Context, name string) (Backend, string, error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.frozen = true
		descriptors := append([]Descriptor(nil), r.descriptors...)
		r.mu.Unlock()

		r.resolved, r.name, r.err = r.resolve(ctx, strings.TrimSpace(name), descriptors)
	})
	return r.resolved, r.name, r.err
}

func (r *Registry) resolve(ctx context.Context, name string, descriptors []Descriptor) (Backend, string, error) {
	var selected Descriptor

	switch {
	case name != "":
		d, ok := r.lookup(name, descriptors)
		if !ok {
			return nil, "", fmt.Errorf("%w: Unknown backend '%s' (available: %s)",
				ErrUnknownBackend, name, strings.Join(r.available(descriptors), ", "))
		}
		selected = d
	case len(descriptors) > 0:
		selected = descriptors[0]
	default:
		r.logger.WarnContext(ctx, "No external backend found — using MemoryBackend (dev only).",
			logger.Backend(MemoryBackendName))
		selected = r.memory
	}

	backend, err := r.build(ctx, selected, r.options)
	if err != nil {
		return nil, "", err
	}

	r.logger.InfoContext(ctx, "queue backend selected",
		logger.Backend(selected.Name),
		logger.Topic(r.options.Topic))
	return backend, selected.Name, nil
}

// Open builds an additional backend instance, for example a dead-letter topic on the
// same broker. It does not affect the resolved backend.
func (r *Registry) Open(ctx context.Context, name string, opts Options) (Backend, error) {
	r.mu.Lock()
	descriptors := append([]Descriptor(nil), r.descriptors...)
	r.mu.Unlock()

	d, ok := r.lookup(strings.TrimSpace(name), descriptors)
	if !ok {
		return nil, fmt.Errorf("%w: Unknown backend '%s'", ErrUnknownBackend, name)
	}
	if opts.Topic == "" {
		opts.Topic = r.options.Topic
	}
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	return r.build(ctx, d, opts)
}

func (r *Registry) lookup(name string, descriptors []Descriptor) (Descriptor, bool) {
	if name == MemoryBackendName {
		return r.memory, true
	}
	for _, d := range descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

func (r *Registry) available(descriptors []Descriptor) []string {
	names := make([]string, 0, len(descriptors)+1)
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return append(names, MemoryBackendName)
}

func (r *Registry) build(ctx context.Context, d Descriptor, opts Options) (Backend, error) {
	backend, err := d.Factory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendInitialization, d.Name, err)
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: %s: factory returned nil backend", ErrBackendInitialization, d.Name)
	}
	return backend, nil
}
