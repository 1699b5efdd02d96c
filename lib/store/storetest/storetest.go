// Package storetest contains the conformance suite that every store backend
// must pass. The single-use and linearizability properties of TakeOnce are
// what the whole anti-replay design hangs on, so they are tested here once
// and run against each backend.
package storetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/UniAttendHQ/uniattend/lib/store"
)

func Common(t *testing.T, f store.Factory, config json.RawMessage) {
	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	s, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s store.Interface) error
		err  error
	}{
		{
			name: "basic set take delete",
			doer: func(t *testing.T, s store.Interface) error {
				if _, err := s.TakeOnce(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.TakeOnce(t.Context(), t.Name())
				if errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to exist in store but it does not: %v", t.Name(), err)
				} else if err != nil {
					t.Error(err)
				}

				if !bytes.Equal(val, []byte(t.Name())) {
					t.Logf("want: %q", t.Name())
					t.Logf("got:  %q", string(val))
					t.Error("wrong value returned")
				}

				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				if err := s.Delete(t.Context(), t.Name()); err != nil {
					return err
				}

				if err := s.Delete(t.Context(), t.Name()); err == nil {
					t.Errorf("key %q does not exist and Delete did not return non-nil", t.Name())
				}

				return nil
			},
		},
		{
			name: "take at most once",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				if _, err := s.TakeOnce(t.Context(), t.Name()); err != nil {
					t.Errorf("first take failed: %v", err)
				}

				if _, err := s.TakeOnce(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("second take observed the value, wanted %v, got: %v", store.ErrNotFound, err)
				}

				return nil
			},
		},
		{
			name: "overwrite replaces value",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte("old"), 5*time.Minute); err != nil {
					return err
				}

				if err := s.Set(t.Context(), t.Name(), []byte("new"), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.TakeOnce(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if !bytes.Equal(val, []byte("new")) {
					t.Errorf("wanted overwritten value %q, got: %q", "new", string(val))
				}

				return nil
			},
		},
		{
			name: "expires",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 150*time.Millisecond); err != nil {
					return err
				}

				//nosleep:bypass XXX: use Go's time faking thing when that lands.
				time.Sleep(155 * time.Millisecond)

				if _, err := s.TakeOnce(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				return nil
			},
		},
		{
			name: "racing takers",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				const racers = 8
				var wg sync.WaitGroup
				wins := make(chan struct{}, racers)

				for range racers {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := s.TakeOnce(t.Context(), t.Name()); err == nil {
							wins <- struct{}{}
						}
					}()
				}

				wg.Wait()
				close(wins)

				var total int
				for range wins {
					total++
				}

				if total != 1 {
					t.Errorf("wanted exactly one racer to observe the value, got %d", total)
				}

				return nil
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.doer(t, s); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
