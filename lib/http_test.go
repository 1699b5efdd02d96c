package lib

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/UniAttendHQ/uniattend/lib/challenge"
	"github.com/UniAttendHQ/uniattend/lib/registry"
	"github.com/UniAttendHQ/uniattend/lib/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := registry.NewMemory()

	srv, err := New(Options{
		Store:     memory.New(t.Context()),
		Subjects:  reg,
		Presence:  reg,
		Admins:    reg,
		JWTSecret: []byte("test-secret"),
	})
	if err != nil {
		t.Fatal(err)
	}

	return srv
}

func postForm(t *testing.T, srv *Server, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var result T
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("can't decode response body: %v", err)
	}
	return result
}

func TestCheckinFlow(t *testing.T) {
	srv := newTestServer(t)

	w := postForm(t, srv, "/register", url.Values{"student_id": {"U2023001"}}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: wanted %d, got %d: %s", http.StatusCreated, w.Code, w.Body)
	}

	w = postForm(t, srv, "/challenge", url.Values{"student_id": {"U2023001"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("challenge: wanted %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}

	chall := decode[struct {
		ChallengeID string `json:"challengeId"`
		Direction   string `json:"direction"`
		ExpiresIn   int    `json:"expiresIn"`
	}](t, w)

	if len(chall.ChallengeID) != 12 {
		t.Errorf("challenge id %q is not 12 characters", chall.ChallengeID)
	}
	if chall.ExpiresIn != 120 {
		t.Errorf("expiresIn = %d, want 120", chall.ExpiresIn)
	}

	mark := url.Values{
		"student_id":   {"U2023001"},
		"challenge_id": {chall.ChallengeID},
		"movement":     {chall.Direction},
	}

	w = postForm(t, srv, "/mark_attendance", mark, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark: wanted %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}

	out := decode[struct {
		Result string `json:"result"`
	}](t, w)
	if out.Result != "CONFIRMED" {
		t.Errorf("result = %q, want CONFIRMED", out.Result)
	}

	// Replaying the same challenge must fail: it was consumed.
	w = postForm(t, srv, "/mark_attendance", mark, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("replay: wanted %d, got %d: %s", http.StatusForbidden, w.Code, w.Body)
	}

	out = decode[struct {
		Result string `json:"result"`
	}](t, w)
	if out.Result != "CHALLENGE_INVALID" {
		t.Errorf("replay result = %q, want CHALLENGE_INVALID", out.Result)
	}
}

func TestMarkMismatch(t *testing.T) {
	srv := newTestServer(t)

	postForm(t, srv, "/register", url.Values{"student_id": {"U2023002"}}, nil)
	w := postForm(t, srv, "/challenge", url.Values{"student_id": {"U2023002"}}, nil)

	chall := decode[struct {
		ChallengeID string `json:"challengeId"`
		Direction   string `json:"direction"`
	}](t, w)

	// Pick any issuable direction other than the one asked for.
	var wrong string
	for _, d := range challenge.Issuable {
		if string(d) != chall.Direction {
			wrong = string(d)
			break
		}
	}

	w = postForm(t, srv, "/mark_attendance", url.Values{
		"student_id":   {"U2023002"},
		"challenge_id": {chall.ChallengeID},
		"movement":     {wrong},
	}, nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("wanted %d, got %d: %s", http.StatusForbidden, w.Code, w.Body)
	}

	out := decode[struct {
		Result string `json:"result"`
	}](t, w)
	if out.Result != "MISMATCH" {
		t.Errorf("result = %q, want MISMATCH", out.Result)
	}
}

func TestReissueInvalidatesOld(t *testing.T) {
	srv := newTestServer(t)

	postForm(t, srv, "/register", url.Values{"student_id": {"U2023003"}}, nil)

	w := postForm(t, srv, "/challenge", url.Values{"student_id": {"U2023003"}}, nil)
	first := decode[struct {
		ChallengeID string `json:"challengeId"`
		Direction   string `json:"direction"`
	}](t, w)

	postForm(t, srv, "/challenge", url.Values{"student_id": {"U2023003"}}, nil)

	// The first challenge was replaced by the reissue and must no longer be
	// claimable, even with the right movement.
	w = postForm(t, srv, "/mark_attendance", url.Values{
		"student_id":   {"U2023003"},
		"challenge_id": {first.ChallengeID},
		"movement":     {first.Direction},
	}, nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("wanted %d, got %d: %s", http.StatusForbidden, w.Code, w.Body)
	}

	out := decode[struct {
		Result string `json:"result"`
	}](t, w)
	if out.Result != "CHALLENGE_INVALID" {
		t.Errorf("result = %q, want CHALLENGE_INVALID", out.Result)
	}
}

func TestChallengeUnregistered(t *testing.T) {
	srv := newTestServer(t)

	w := postForm(t, srv, "/challenge", url.Values{"student_id": {"nobody"}}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("wanted %d, got %d: %s", http.StatusNotFound, w.Code, w.Body)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	w := postForm(t, srv, "/register", url.Values{"student_id": {""}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty id: wanted %d, got %d", http.StatusBadRequest, w.Code)
	}

	w = postForm(t, srv, "/register", url.Values{"student_id": {strings.Repeat("x", 101)}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("long id: wanted %d, got %d", http.StatusBadRequest, w.Code)
	}

	postForm(t, srv, "/register", url.Values{"student_id": {"U2023004"}}, nil)
	w = postForm(t, srv, "/register", url.Values{"student_id": {"U2023004"}}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate: wanted %d, got %d", http.StatusConflict, w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	srv := newTestServer(t)

	w := postForm(t, srv, "/admin/create", url.Values{"username": {"ab"}, "password": {"hunter22"}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("short username: wanted %d, got %d", http.StatusBadRequest, w.Code)
	}

	w = postForm(t, srv, "/admin/create", url.Values{"username": {"root"}, "password": {"short"}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("short password: wanted %d, got %d", http.StatusBadRequest, w.Code)
	}

	w = postForm(t, srv, "/admin/create", url.Values{"username": {"root"}, "password": {"hunter22"}}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: wanted %d, got %d: %s", http.StatusCreated, w.Code, w.Body)
	}

	w = postForm(t, srv, "/admin/login", url.Values{"username": {"root"}, "password": {"wrong!!"}}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: wanted %d, got %d", http.StatusUnauthorized, w.Code)
	}

	w = postForm(t, srv, "/admin/login", url.Values{"username": {"root"}, "password": {"hunter22"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: wanted %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}

	login := decode[struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
	}](t, w)
	if login.AccessToken == "" || login.TokenType != "bearer" {
		t.Fatalf("bad login response: %+v", login)
	}

	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: wanted %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics: wanted %d, got %d: %s", http.StatusOK, rec.Code, rec.Body)
	}

	w = postForm(t, srv, "/admin/verify-token", nil, map[string]string{
		"Authorization": "Bearer " + login.AccessToken,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify-token: wanted %d, got %d: %s", http.StatusOK, w.Code, w.Body)
	}

	verified := decode[struct {
		Valid    bool   `json:"valid"`
		Username string `json:"username"`
	}](t, w)
	if !verified.Valid || verified.Username != "root" {
		t.Errorf("bad verify-token response: %+v", verified)
	}
}

func TestAnalyticsAfterCheckin(t *testing.T) {
	srv := newTestServer(t)

	postForm(t, srv, "/register", url.Values{"student_id": {"U2023005"}}, nil)
	w := postForm(t, srv, "/challenge", url.Values{"student_id": {"U2023005"}}, nil)
	chall := decode[struct {
		ChallengeID string `json:"challengeId"`
		Direction   string `json:"direction"`
	}](t, w)

	postForm(t, srv, "/mark_attendance", url.Values{
		"student_id":   {"U2023005"},
		"challenge_id": {chall.ChallengeID},
		"movement":     {chall.Direction},
	}, nil)

	postForm(t, srv, "/admin/create", url.Values{"username": {"root"}, "password": {"hunter22"}}, nil)
	w = postForm(t, srv, "/admin/login", url.Values{"username": {"root"}, "password": {"hunter22"}}, nil)
	login := decode[struct {
		AccessToken string `json:"accessToken"`
	}](t, w)

	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	analytics := decode[registry.Analytics](t, rec)
	if analytics.TotalRecords != 1 || analytics.UniqueSubjects != 1 || analytics.TodayCount != 1 {
		t.Errorf("wrong analytics after one check-in: %+v", analytics)
	}

	req = httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	students := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	if students.Count != 1 {
		t.Errorf("wrong student count: %d", students.Count)
	}
}
