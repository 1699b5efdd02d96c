// Package uniattend contains the shared constants and defaults for the
// liveness-verified check-in service.
package uniattend

import "time"

var (
	// Version is the version of UniAttend, usually set at build time with ldflags.
	Version = "devel"
)

const (
	// DefaultChallengeTTL is how long an issued challenge stays valid in the
	// challenge store before it silently expires unread.
	DefaultChallengeTTL = 120 * time.Second

	// DefaultSessionDeadline is how long a verification session may spend
	// collecting samples before it times out.
	DefaultSessionDeadline = 30 * time.Second

	// DefaultThreshold is the horizontal displacement (in frame pixels) that a
	// tracked landmark must travel before a left/right verdict is produced.
	DefaultThreshold = 22.0

	// DefaultWindowSize is the number of recent samples the classifier looks at.
	DefaultWindowSize = 15

	// DefaultMinSamples is the minimum number of samples required before the
	// classifier attempts any verdict at all.
	DefaultMinSamples = 8

	// DefaultStoreTimeout bounds a single round trip to a networked challenge
	// store backend.
	DefaultStoreTimeout = 3 * time.Second

	// DefaultTokenExpiration is how long admin bearer tokens stay valid.
	DefaultTokenExpiration = 120 * time.Minute

	// DefaultLastSeenTTL is how long the last_seen cache entry written after a
	// successful check-in is kept around.
	DefaultLastSeenTTL = 24 * time.Hour

	// MaxSubjectIDLength bounds subject identifiers accepted at registration.
	MaxSubjectIDLength = 100
)
