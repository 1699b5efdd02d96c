package lib

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/UniAttendHQ/uniattend"
	"github.com/UniAttendHQ/uniattend/internal"
	"github.com/UniAttendHQ/uniattend/lib/challenge"
	"github.com/UniAttendHQ/uniattend/lib/registry"
	"github.com/UniAttendHQ/uniattend/lib/verify"
)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /challenge", s.handleChallenge)
	s.mux.HandleFunc("POST /mark_attendance", s.handleMarkAttendance)
	s.mux.HandleFunc("POST /admin/create", s.handleAdminCreate)
	s.mux.HandleFunc("POST /admin/login", s.handleAdminLogin)
	s.mux.HandleFunc("POST /admin/verify-token", s.requireAdmin(s.handleAdminVerifyToken))
	s.mux.HandleFunc("GET /analytics", s.requireAdmin(s.handleAnalytics))
	s.mux.HandleFunc("GET /students", s.requireAdmin(s.handleStudents))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("can't encode response", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// requireAdmin rejects requests that don't carry a valid admin bearer token,
// and stashes the admin username in the request headers for handlers that
// want it.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lg := internal.GetRequestLogger(r)

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		username, err := s.VerifyAdminToken(token)
		if err != nil {
			lg.Debug("rejected admin token", "err", err)
			s.respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		r.Header.Set("X-Admin-User", username)
		next(w, r)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	subjectID := strings.TrimSpace(r.FormValue("student_id"))
	if subjectID == "" {
		s.respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	if len(subjectID) > uniattend.MaxSubjectIDLength {
		s.respondError(w, http.StatusBadRequest, "student_id is too long")
		return
	}

	err := s.opts.Subjects.Register(r.Context(), subjectID)
	switch {
	case errors.Is(err, registry.ErrDuplicate):
		s.respondError(w, http.StatusConflict, "student already registered")
	case err != nil:
		lg.Error("can't register subject", "err", err)
		s.respondError(w, http.StatusInternalServerError, "registration failed")
	default:
		lg.Info("subject registered", "subject", subjectID)
		s.respondJSON(w, http.StatusCreated, map[string]string{"studentId": subjectID})
	}
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	subjectID := strings.TrimSpace(r.FormValue("student_id"))
	if subjectID == "" {
		s.respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	chall, err := s.IssueChallenge(r.Context(), subjectID)
	switch {
	case errors.Is(err, challenge.ErrUnregisteredSubject):
		s.respondError(w, http.StatusNotFound, "student is not registered")
	case err != nil:
		lg.Error("can't issue challenge", "err", err)
		s.respondError(w, http.StatusInternalServerError, "can't issue challenge")
	default:
		s.respondJSON(w, http.StatusOK, map[string]any{
			"challengeId": chall.ID,
			"direction":   chall.Direction,
			"expiresIn":   int(chall.TTL.Seconds()),
		})
	}
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	subjectID := strings.TrimSpace(r.FormValue("student_id"))
	challengeID := strings.TrimSpace(r.FormValue("challenge_id"))
	movement := r.FormValue("movement")

	if subjectID == "" || challengeID == "" {
		s.respondError(w, http.StatusBadRequest, "student_id and challenge_id are required")
		return
	}

	claimed, ok := challenge.ParseDirection(movement)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown movement")
		return
	}

	result := s.VerifyAndConsume(r.Context(), subjectID, challengeID, claimed)

	status := http.StatusOK
	if result != verify.ResultConfirmed {
		status = http.StatusForbidden
	}

	s.respondJSON(w, status, verify.Outcome{
		SubjectID: subjectID,
		Result:    result,
		Direction: claimed,
	})
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if len(username) < 3 {
		s.respondError(w, http.StatusBadRequest, "username must be at least 3 characters")
		return
	}

	if len(password) < 6 {
		s.respondError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	err := s.CreateAdmin(r.Context(), username, password)
	switch {
	case errors.Is(err, registry.ErrDuplicate):
		s.respondError(w, http.StatusConflict, "admin already exists")
	case err != nil:
		lg.Error("can't create admin", "err", err)
		s.respondError(w, http.StatusInternalServerError, "can't create admin")
	default:
		lg.Info("admin created", "username", username)
		s.respondJSON(w, http.StatusCreated, map[string]string{"username": username})
	}
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	token, err := s.AdminLogin(r.Context(), username, password)
	if err != nil {
		lg.Debug("rejected admin login", "username", username)
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"accessToken": token,
		"tokenType":   "bearer",
	})
}

func (s *Server) handleAdminVerifyToken(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"username": r.Header.Get("X-Admin-User"),
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	analytics, err := s.opts.Presence.Analytics(r.Context())
	if err != nil {
		lg.Error("can't aggregate analytics", "err", err)
		s.respondError(w, http.StatusInternalServerError, "can't aggregate analytics")
		return
	}

	s.respondJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	subjects, err := s.opts.Subjects.List(r.Context())
	if err != nil {
		lg.Error("can't list subjects", "err", err)
		s.respondError(w, http.StatusInternalServerError, "can't list students")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"students": subjects,
		"count":    len(subjects),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": uniattend.Version,
	})
}
