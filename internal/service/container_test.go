package service

import (
	"errors"
	"testing"
)

func TestLazySingleton(t *testing.T) {
	container := NewContainer()

	built := 0
	container.Register("counter", func() any {
		built++
		return &built
	})

	if !container.Has("counter") {
		t.Error("expected Has to report registered service")
	}

	if built != 0 {
		t.Error("factory must not run before first Get")
	}

	first, err := container.Get("counter")
	if err != nil {
		t.Fatal(err)
	}

	second, err := container.Get("counter")
	if err != nil {
		t.Fatal(err)
	}

	if built != 1 {
		t.Errorf("factory should run exactly once; ran %d times", built)
	}

	if first != second {
		t.Error("expected the same cached instance on every Get")
	}
}

func TestMissingService(t *testing.T) {
	container := NewContainer()

	_, err := container.Get("ghost")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound; got %v", err)
	}

	if container.Has("ghost") {
		t.Error("Has should be false for unknown service")
	}
}

func TestOverrideAndReset(t *testing.T) {
	container := NewContainer()
	container.Register("value", func() any { return "real" })

	container.Override("value", "fake")

	got, err := container.Get("value")
	if err != nil {
		t.Fatal(err)
	}
	if got != "fake" {
		t.Errorf("expected override to win; got %v", got)
	}

	container.Reset()

	_, err = container.Get("value")
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound after reset; got %v", err)
	}
}

func TestResolveTyped(t *testing.T) {
	container := NewContainer()
	container.Register("number", func() any { return 42 })

	n, err := Resolve[int](container, "number")
	if err != nil {
		t.Fatal(err)
	}
	if n != 42 {
		t.Errorf("expected 42; got %d", n)
	}

	_, err = Resolve[string](container, "number")
	if err == nil {
		t.Error("expected a type mismatch error")
	}
}
