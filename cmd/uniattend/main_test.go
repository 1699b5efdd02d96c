package main

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/UniAttendHQ/uniattend/lib/store"
)

func checkStoreWorks(t *testing.T, st store.Interface) {
	t.Helper()

	if err := st.Set(t.Context(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := st.TakeOnce(t.Context(), "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v" {
		t.Fatalf("wrong value out of fallback store: %q", got)
	}

	if _, err := st.TakeOnce(t.Context(), "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("wanted %v on second take, got: %v", store.ErrNotFound, err)
	}
}

func TestBuildStoreFallsBackWhenValkeyUnreachable(t *testing.T) {
	// Nothing listens on the discard port, so the configured shared store is
	// down. Startup must degrade to the local map, not kill the daemon.
	st, err := buildStore(t.Context(), "redis://127.0.0.1:9/0", "")
	if err != nil {
		t.Fatal(err)
	}

	checkStoreWorks(t, st)
}

func TestBuildStoreFallsBackWhenBboltUnusable(t *testing.T) {
	// /dev/null is not a directory, so the bbolt path can never be created.
	st, err := buildStore(t.Context(), "", filepath.Join("/dev/null", "uniattend.bdb"))
	if err != nil {
		t.Fatal(err)
	}

	checkStoreWorks(t, st)
}

func TestBuildStoreBbolt(t *testing.T) {
	st, err := buildStore(t.Context(), "", filepath.Join(t.TempDir(), "uniattend.bdb"))
	if err != nil {
		t.Fatal(err)
	}

	checkStoreWorks(t, st)
}

func TestBuildBackendUnknown(t *testing.T) {
	if _, err := buildBackend(t.Context(), "carrier-pigeon", nil); err == nil {
		t.Fatal("wanted an error for an unregistered backend")
	}
}
