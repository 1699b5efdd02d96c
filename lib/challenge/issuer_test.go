package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/UniAttendHQ/uniattend/lib/store"
	"github.com/UniAttendHQ/uniattend/lib/store/memory"
)

type fakeSubjects map[string]bool

func (f fakeSubjects) Exists(_ context.Context, subjectID string) (bool, error) {
	return f[subjectID], nil
}

func newTestIssuer(t *testing.T, intN func(int) int) *Issuer {
	t.Helper()

	return &Issuer{
		Subjects: fakeSubjects{"U2023001": true},
		Store: &store.JSON[Challenge]{
			Underlying: memory.New(t.Context()),
			Prefix:     "challenge:",
		},
		TTL:  2 * time.Minute,
		IntN: intN,
	}
}

func TestIssue(t *testing.T) {
	iss := newTestIssuer(t, func(int) int { return 0 })

	chall, err := iss.Issue(t.Context(), "U2023001")
	if err != nil {
		t.Fatal(err)
	}

	if chall.Direction != DirectionLeft {
		t.Errorf("wanted seeded direction %s, got: %s", DirectionLeft, chall.Direction)
	}

	if len(chall.ID) != 12 {
		t.Errorf("wanted a 12 character challenge ID, got: %q", chall.ID)
	}

	stored, err := iss.Store.TakeOnce(t.Context(), "U2023001")
	if err != nil {
		t.Fatal(err)
	}

	if stored.ID != chall.ID {
		t.Errorf("stored challenge ID %q does not match issued %q", stored.ID, chall.ID)
	}
}

func TestIssueUnregistered(t *testing.T) {
	iss := newTestIssuer(t, nil)

	if _, err := iss.Issue(t.Context(), "nobody"); !errors.Is(err, ErrUnregisteredSubject) {
		t.Fatalf("wanted %v, got: %v", ErrUnregisteredSubject, err)
	}

	// An unregistered subject must leave no challenge behind.
	if _, err := iss.Store.TakeOnce(t.Context(), "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("wanted no stored challenge, got: %v", err)
	}
}

func TestIssueOverwritesPrior(t *testing.T) {
	iss := newTestIssuer(t, nil)

	first, err := iss.Issue(t.Context(), "U2023001")
	if err != nil {
		t.Fatal(err)
	}

	second, err := iss.Issue(t.Context(), "U2023001")
	if err != nil {
		t.Fatal(err)
	}

	if first.ID == second.ID {
		t.Fatalf("two issuances produced the same challenge ID: %q", first.ID)
	}

	stored, err := iss.Store.TakeOnce(t.Context(), "U2023001")
	if err != nil {
		t.Fatal(err)
	}

	if stored.ID != second.ID {
		t.Errorf("reissue did not overwrite: stored %q, wanted %q", stored.ID, second.ID)
	}
}

func TestParseDirection(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Direction
		ok   bool
	}{
		{"LEFT", DirectionLeft, true},
		{"left", DirectionLeft, true},
		{" Right ", DirectionRight, true},
		{"up", DirectionUp, true},
		{"down", DirectionDown, true},
		{"sideways", "", false},
		{"", "", false},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDirection(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseDirection(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
