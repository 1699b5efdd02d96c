package challenge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/UniAttendHQ/uniattend"
	"github.com/UniAttendHQ/uniattend/lib/store"
)

// SubjectChecker is the slice of the subject registry the issuer needs.
type SubjectChecker interface {
	Exists(ctx context.Context, subjectID string) (bool, error)
}

// Issuer creates single-use directional challenges and registers them in the
// challenge store under a fixed TTL.
type Issuer struct {
	Subjects SubjectChecker
	Store    *store.JSON[Challenge]
	TTL      time.Duration

	// IntN is the randomness source for direction selection. Left nil it uses
	// math/rand/v2; tests inject a seeded generator.
	IntN func(n int) int

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (i *Issuer) intN(n int) int {
	if i.IntN != nil {
		return i.IntN(n)
	}
	return rand.IntN(n)
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) ttl() time.Duration {
	if i.TTL != 0 {
		return i.TTL
	}
	return uniattend.DefaultChallengeTTL
}

// NewID returns a short opaque challenge identifier. The first twelve
// characters of a UUIDv4 string carry about 44 bits of randomness, which is
// plenty of collision resistance for any practical batch size while staying
// short enough to pass around in form fields.
func NewID() string {
	return uuid.NewString()[:12]
}

// Issue creates a challenge bound to subjectID: a uniformly random direction
// out of Issuable plus a fresh ID, written to the store with the issuer's
// TTL. The only side effect is the store write. Returns
// ErrUnregisteredSubject if the registry does not know the subject.
func (i *Issuer) Issue(ctx context.Context, subjectID string) (Challenge, error) {
	ok, err := i.Subjects.Exists(ctx, subjectID)
	if err != nil {
		return Challenge{}, fmt.Errorf("challenge: can't check subject registry: %w", err)
	}

	if !ok {
		return Challenge{}, fmt.Errorf("%w: %q", ErrUnregisteredSubject, subjectID)
	}

	result := Challenge{
		SubjectID: subjectID,
		ID:        NewID(),
		Direction: Issuable[i.intN(len(Issuable))],
		IssuedAt:  i.now(),
		TTL:       i.ttl(),
	}

	if err := i.Store.Set(ctx, subjectID, result, result.TTL); err != nil {
		return Challenge{}, fmt.Errorf("challenge: can't store challenge: %w", err)
	}

	challengesIssued.WithLabelValues(string(result.Direction)).Inc()

	return result, nil
}
