package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UniAttendHQ/uniattend"
	"github.com/UniAttendHQ/uniattend/lib/challenge"
)

// Result is the terminal state of one verification attempt.
type Result string

const (
	ResultConfirmed        Result = "CONFIRMED"
	ResultTimedOut         Result = "TIMED_OUT"
	ResultChallengeInvalid Result = "CHALLENGE_INVALID"
	ResultMismatch         Result = "MISMATCH"
)

// State is where a session currently is in its lifecycle. The four result
// states are terminal.
type State string

const (
	StateIssuing    State = "ISSUING"
	StateCollecting State = "COLLECTING"
	StateDone       State = "DONE"
)

// Outcome is the immutable terminal artifact of a session: one per subject,
// produced exactly once.
type Outcome struct {
	SubjectID string              `json:"subjectId"`
	Result    Result              `json:"result"`
	Direction challenge.Direction `json:"direction,omitempty"`
}

// Source yields positional samples while a session is collecting. The core
// treats it as a passive producer: it never controls the rate, it just pulls.
// Next must respect ctx cancellation, which is how the session deadline is
// enforced against a stalled source.
type Source interface {
	Next(ctx context.Context) (Sample, error)
}

// ChallengeIssuer issues a fresh challenge for a subject.
type ChallengeIssuer interface {
	Issue(ctx context.Context, subjectID string) (challenge.Challenge, error)
}

// Authority rules on a claimed movement by consuming the stored challenge.
// The motion classifier is only a UX gate; the authority's take-once on the
// store is what actually closes the replay hole, so every session exit path
// goes through it exactly once.
type Authority interface {
	VerifyAndConsume(ctx context.Context, subjectID, challengeID string, claimed challenge.Direction) Result
}

// Session coordinates one subject's verification attempt:
// issue challenge, collect samples, classify, consume, emit outcome.
type Session struct {
	SubjectID  string
	Issuer     ChallengeIssuer
	Authority  Authority
	Source     Source
	Classifier Classifier

	// Deadline bounds the collecting phase. Zero means the default.
	Deadline time.Duration

	state State
}

// State reports where the session is. Mostly useful for logging and tests.
func (s *Session) State() State {
	if s.state == "" {
		return StateIssuing
	}
	return s.state
}

func (s *Session) deadline() time.Duration {
	if s.Deadline > 0 {
		return s.Deadline
	}
	return uniattend.DefaultSessionDeadline
}

// Run drives the session to a terminal outcome. It never returns an error:
// every failure mode is folded into one of the four results, all of which
// are recoverable by issuing a fresh challenge. Abandonment via ctx leaves
// nothing behind beyond the challenge's own TTL.
func (s *Session) Run(ctx context.Context) Outcome {
	lg := slog.With("subject", s.SubjectID)

	s.state = StateIssuing
	chall, err := s.Issuer.Issue(ctx, s.SubjectID)
	if err != nil {
		if !errors.Is(err, challenge.ErrUnregisteredSubject) {
			lg.Error("can't issue challenge", "err", err)
		}
		s.state = StateDone
		return s.finish(Outcome{SubjectID: s.SubjectID, Result: ResultChallengeInvalid})
	}

	lg = lg.With("challenge", chall.ID, "direction", chall.Direction)
	lg.Debug("collecting samples")

	s.state = StateCollecting
	cctx, cancel := context.WithTimeout(ctx, s.deadline())
	defer cancel()

	window := NewWindow(s.Classifier.windowSize())

	for {
		sample, err := s.Source.Next(cctx)
		if err != nil {
			// Deadline hit, caller abandoned us, or the source dried up. The
			// challenge is consumed either way so it can't outlive the session;
			// the take result is deliberately discarded.
			s.Authority.VerifyAndConsume(context.WithoutCancel(ctx), s.SubjectID, chall.ID, "")
			s.state = StateDone
			return s.finish(Outcome{SubjectID: s.SubjectID, Result: ResultTimedOut})
		}

		window.Push(sample)

		verdict, ok := s.Classifier.Classify(window)
		if !ok || verdict != chall.Direction {
			// No verdict yet, or a movement we didn't ask for (DOWN can show up
			// here but is never an expected value). Keep collecting until the
			// deadline rules.
			continue
		}

		result := s.Authority.VerifyAndConsume(context.WithoutCancel(ctx), s.SubjectID, chall.ID, verdict)
		s.state = StateDone
		return s.finish(Outcome{SubjectID: s.SubjectID, Result: result, Direction: verdict})
	}
}

func (s *Session) finish(out Outcome) Outcome {
	sessionOutcomes.WithLabelValues(string(out.Result)).Inc()
	return out
}
