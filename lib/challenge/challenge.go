package challenge

import (
	"strings"
	"time"
)

// Direction is a head movement a subject can be asked to perform.
type Direction string

const (
	DirectionLeft  Direction = "LEFT"
	DirectionRight Direction = "RIGHT"
	DirectionUp    Direction = "UP"

	// DirectionDown can come out of the motion classifier but is never issued
	// as a challenge, so a DOWN verdict can never match.
	DirectionDown Direction = "DOWN"
)

// Issuable is the set of directions a challenge may ask for, in the order
// the issuer's random pick indexes into.
var Issuable = []Direction{DirectionLeft, DirectionRight, DirectionUp}

// ParseDirection normalizes a client-reported direction. Comparison is
// case-insensitive on the wire; the zero value of ok means the string is not
// any known direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionLeft:
		return DirectionLeft, true
	case DirectionRight:
		return DirectionRight, true
	case DirectionUp:
		return DirectionUp, true
	case DirectionDown:
		return DirectionDown, true
	default:
		return "", false
	}
}

// Challenge is the metadata about a single challenge issuance. It lives in
// the challenge store from issuance until it is consumed or its TTL lapses,
// whichever comes first.
type Challenge struct {
	SubjectID string        `json:"subjectId"` // Subject this challenge is bound to
	ID        string        `json:"id"`        // Opaque identifier, unique per issuance
	Direction Direction     `json:"direction"` // The movement the subject must perform
	IssuedAt  time.Time     `json:"issuedAt"`  // When the challenge was issued
	TTL       time.Duration `json:"ttl"`       // How long the store keeps it
}

// Challenges are stored under the subject ID alone, so issuing a new
// challenge overwrites any unconsumed older one. The challenge ID is checked
// against the stored value on consumption: presenting a stale ID consumes
// whatever is stored and still fails, so a reissue always invalidates its
// predecessor.
