package services_test

import (
	"errors"
	"strings"
	"testing"

	"voxid/internal/services"
)

func TestWrapPreservesMarkerAndDetail(t *testing.T) {
	cause := errors.New("open feats/001.npy: no such file")
	err := services.Wrap(services.ErrNotFound, "dataset", "load feature", "feature file missing", cause)

	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to remain reachable")
	}
	for _, want := range []string{"dataset", "load feature", "feature file missing"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestWrapNilMarkerDefaultsToCompute(t *testing.T) {
	err := services.Wrap(nil, "encoder", "forward", "", nil)
	if !errors.Is(err, services.ErrCompute) {
		t.Fatalf("expected ErrCompute fallback, got %v", err)
	}
}

func TestWrapEmptyDetail(t *testing.T) {
	err := services.Wrap(services.ErrInvalidBatch, "", "", "", nil)
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestIsFatalBeforeStart(t *testing.T) {
	cfgErr := services.Wrap(services.ErrConfiguration, "config", "load", "missing mapping.json", nil)
	if !services.IsFatalBeforeStart(cfgErr) {
		t.Fatal("configuration errors should be fatal before start")
	}
	if services.IsFatalBeforeStart(services.Wrap(services.ErrNotFound, "dataset", "load", "", nil)) {
		t.Fatal("not-found errors fire mid-run, not before start")
	}
}
