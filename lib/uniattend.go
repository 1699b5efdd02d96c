// Package lib is the service layer of UniAttend: it owns challenge
// consumption, presence recording, admin credentials, and the HTTP surface
// that drives all of it.
package lib

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"

	"github.com/UniAttendHQ/uniattend"
	"github.com/UniAttendHQ/uniattend/lib/challenge"
	"github.com/UniAttendHQ/uniattend/lib/registry"
	"github.com/UniAttendHQ/uniattend/lib/store"
	"github.com/UniAttendHQ/uniattend/lib/verify"
)

var (
	challengesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uniattend_challenges_consumed",
		Help: "The total number of challenge consumption attempts by result",
	}, []string{"result"})

	presenceRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uniattend_presence_recorded",
		Help: "The total number of confirmed check-ins written to the presence record",
	})
)

// ErrInvalidCredentials is returned on a failed admin login. It covers both
// the unknown-username and wrong-password cases so callers can't tell them
// apart.
var ErrInvalidCredentials = errors.New("lib: invalid credentials")

// Options configures a Server. Store, Subjects, Presence, Admins, and
// JWTSecret are required.
type Options struct {
	// Store holds issued challenges and the last-seen cache.
	Store store.Interface

	Subjects registry.Subjects
	Presence registry.Presence
	Admins   registry.Admins

	// JWTSecret signs admin bearer tokens (HS256).
	JWTSecret []byte

	// Tuning carries the deployment's classifier and timing knobs. The zero
	// value resolves everything to defaults.
	Tuning verify.Tuning
}

// Server ties the verification core to its collaborators and serves the HTTP
// API. It implements verify.Authority.
type Server struct {
	mux        *http.ServeMux
	opts       Options
	issuer     *challenge.Issuer
	challenges *store.JSON[challenge.Challenge]
	lastSeen   *store.JSON[time.Time]
}

// New validates opts and assembles a Server with its routes registered.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("lib: opts.Store is required")
	}

	if opts.Subjects == nil || opts.Presence == nil || opts.Admins == nil {
		return nil, fmt.Errorf("lib: registry boundaries are required")
	}

	if len(opts.JWTSecret) == 0 {
		return nil, fmt.Errorf("lib: opts.JWTSecret is required")
	}

	challenges := &store.JSON[challenge.Challenge]{
		Underlying: opts.Store,
		Prefix:     "challenge:",
	}

	result := &Server{
		mux:  http.NewServeMux(),
		opts: opts,
		issuer: &challenge.Issuer{
			Subjects: opts.Subjects,
			Store:    challenges,
			TTL:      opts.Tuning.ChallengeTTL(),
		},
		challenges: challenges,
		lastSeen: &store.JSON[time.Time]{
			Underlying: opts.Store,
			Prefix:     "last_seen:",
		},
	}

	result.registerRoutes()

	return result, nil
}

// IssueChallenge creates a fresh single-use challenge for subjectID,
// replacing any challenge the subject already had pending.
func (s *Server) IssueChallenge(ctx context.Context, subjectID string) (challenge.Challenge, error) {
	return s.issuer.Issue(ctx, subjectID)
}

// VerifyAndConsume rules on a claimed movement. The stored challenge is
// consumed no matter what the ruling is: a replayed or mismatched claim
// still burns the challenge, so one issued challenge backs at most one
// ruling. Storage trouble folds into CHALLENGE_INVALID rather than an error
// because a fresh challenge always recovers the situation.
func (s *Server) VerifyAndConsume(ctx context.Context, subjectID, challengeID string, claimed challenge.Direction) verify.Result {
	result := s.verifyAndConsume(ctx, subjectID, challengeID, claimed)
	challengesConsumed.WithLabelValues(string(result)).Inc()
	return result
}

func (s *Server) verifyAndConsume(ctx context.Context, subjectID, challengeID string, claimed challenge.Direction) verify.Result {
	lg := slog.With("subject", subjectID, "challenge", challengeID)

	stored, err := s.challenges.TakeOnce(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			lg.Debug("no takeable challenge", "err", challenge.ErrExpiredOrConsumed)
		} else {
			lg.Error("can't take challenge from store", "err", err)
		}
		return verify.ResultChallengeInvalid
	}

	if stored.ID != challengeID {
		// A newer challenge replaced the one being claimed. Its takeable copy
		// is gone now too, which is fine: both generations are dead and the
		// subject starts over.
		lg.Debug("challenge id does not match stored challenge", "stored", stored.ID)
		return verify.ResultChallengeInvalid
	}

	if claimed != stored.Direction {
		lg.Debug("claimed direction does not match", "wanted", stored.Direction, "claimed", claimed)
		return verify.ResultMismatch
	}

	now := time.Now()
	if err := s.opts.Presence.Record(ctx, subjectID, now, "self"); err != nil {
		// The ruling stands; the sink hiccup is an operational problem, not a
		// liveness one.
		lg.Error("can't record presence", "err", err)
	} else {
		presenceRecorded.Inc()
	}

	if err := s.lastSeen.Set(ctx, subjectID, now, uniattend.DefaultLastSeenTTL); err != nil {
		lg.Error("can't update last_seen cache", "err", err)
	}

	lg.Info("check-in confirmed", "direction", claimed)

	return verify.ResultConfirmed
}

// RunSession drives one full verification session for subjectID against the
// given sample source.
func (s *Server) RunSession(ctx context.Context, subjectID string, source verify.Source) verify.Outcome {
	sess := &verify.Session{
		SubjectID:  subjectID,
		Issuer:     s.issuer,
		Authority:  s,
		Source:     source,
		Classifier: s.opts.Tuning.Classifier,
		Deadline:   s.opts.Tuning.SessionDeadline(),
	}

	return sess.Run(ctx)
}

// RunBatch verifies subjectIDs one at a time over a shared sample source,
// yielding outcomes lazily in input order.
func (s *Server) RunBatch(ctx context.Context, subjectIDs []string, source verify.Source) iter.Seq[verify.Outcome] {
	runner := &verify.Runner{
		Issuer:     s.issuer,
		Authority:  s,
		Source:     source,
		Classifier: s.opts.Tuning.Classifier,
		Deadline:   s.opts.Tuning.SessionDeadline(),
	}

	return runner.Run(ctx, subjectIDs)
}

// CreateAdmin hashes password with bcrypt and stores the new administrator.
func (s *Server) CreateAdmin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("lib: can't hash password: %w", err)
	}

	return s.opts.Admins.Create(ctx, username, string(hash))
}

// AdminLogin checks the credentials and mints a bearer token on success.
func (s *Server) AdminLogin(ctx context.Context, username, password string) (string, error) {
	hash, err := s.opts.Admins.PasswordHash(ctx, username)
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			slog.Error("can't look up admin", "username", username, "err", err)
		}
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.signAdminToken(username)
}

func (s *Server) signAdminToken(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(uniattend.DefaultTokenExpiration).Unix(),
	})

	signed, err := token.SignedString(s.opts.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("lib: can't sign token: %w", err)
	}

	return signed, nil
}

// VerifyAdminToken parses and validates a bearer token, returning the admin
// username it was minted for.
func (s *Server) VerifyAdminToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("lib: unexpected signing method %q", token.Header["alg"])
		}
		return s.opts.JWTSecret, nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("lib: invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("lib: invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("lib: token has no subject")
	}

	return sub, nil
}
