package main

import (
	"testing"
	"time"

	"mercator-hq/relay/internal/backends"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/registry"
)

func TestRetireRegistryWaitsOutInFlightRequests(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	reg := registry.New()
	reg.Register(func() (providers.Provider, error) { return mock, nil })
	if err := reg.Build(); err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	retireRegistry(reg, 50*time.Millisecond)

	// A request dispatched just before the swap may still hold a handle.
	if mock.Closed() {
		t.Fatal("registry shut down before the grace period elapsed")
	}

	deadline := time.After(2 * time.Second)
	for !mock.Closed() {
		select {
		case <-deadline:
			t.Fatal("registry was never shut down after the grace period")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
