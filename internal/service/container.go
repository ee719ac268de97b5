// Package service is a lazy singleton registry for the server's collaborators.
// Factories are registered once at startup; instances are built on first use
// and cached for the life of the process. Tests swap collaborators in with
// Override and tear everything down with Reset.
package service

import (
	"errors"
	"fmt"
	"sync"
)

// ErrServiceNotFound is returned when a service name was never registered.
var ErrServiceNotFound = errors.New("service: service not found")

// Factory builds a service instance. It runs at most once per registration.
type Factory func() any

// Container is a string keyed service registry.
type Container struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]any
}

func NewContainer() *Container {
	return &Container{
		factories: map[string]Factory{},
		instances: map[string]any{},
	}
}

// Register stores a factory under name. Re-registering replaces the factory
// and drops any previously built instance.
func (c *Container) Register(name string, factory Factory) {
	c.mu.Lock()
	c.factories[name] = factory
	delete(c.instances, name)
	c.mu.Unlock()
}

// Get returns the instance for name, building it on first call. The factory
// runs outside the container lock so factories may resolve other services.
func (c *Container) Get(name string) (any, error) {
	c.mu.Lock()
	if instance, exists := c.instances[name]; exists {
		c.mu.Unlock()
		return instance, nil
	}

	factory, exists := c.factories[name]
	c.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("%q: %w", name, ErrServiceNotFound)
	}

	instance := factory()

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent resolver may have built the instance first; keep the one
	// already cached so every caller sees the same singleton.
	if cached, exists := c.instances[name]; exists {
		return cached, nil
	}

	c.instances[name] = instance

	return instance, nil
}

// Has reports whether name is registered, instantiated or not.
func (c *Container) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.factories[name]
	if !exists {
		_, exists = c.instances[name]
	}
	return exists
}

// Override installs a pre-built instance, bypassing any factory. For tests.
func (c *Container) Override(name string, instance any) {
	c.mu.Lock()
	c.instances[name] = instance
	c.mu.Unlock()
}

// Reset drops all factories and instances.
func (c *Container) Reset() {
	c.mu.Lock()
	c.factories = map[string]Factory{}
	c.instances = map[string]any{}
	c.mu.Unlock()
}

// Resolve fetches a service by name and asserts its type in one step.
func Resolve[T any](c *Container, name string) (T, error) {
	var zero T

	instance, err := c.Get(name)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has unexpected type %T", name, instance)
	}

	return typed, nil
}
