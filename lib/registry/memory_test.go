package registry

import (
	"errors"
	"testing"
	"time"
)

func TestMemorySubjects(t *testing.T) {
	m := NewMemory()

	ok, err := m.Exists(t.Context(), "U2023001")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("subject exists before registration")
	}

	if err := m.Register(t.Context(), "U2023001"); err != nil {
		t.Fatal(err)
	}

	if err := m.Register(t.Context(), "U2023001"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("wanted %v on double registration, got: %v", ErrDuplicate, err)
	}

	ok, err = m.Exists(t.Context(), "U2023001")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("subject missing after registration")
	}

	subjects, err := m.List(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(subjects) != 1 || subjects[0].SubjectID != "U2023001" {
		t.Errorf("wrong subject list: %v", subjects)
	}
}

func TestMemoryAnalytics(t *testing.T) {
	m := NewMemory()

	now := time.Now().UTC()
	for _, rec := range []struct {
		subject string
		at      time.Time
	}{
		{"A", now},
		{"A", now.Add(-48 * time.Hour)},
		{"B", now},
	} {
		if err := m.Record(t.Context(), rec.subject, rec.at, "self"); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.Analytics(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	if got.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", got.TotalRecords)
	}
	if got.UniqueSubjects != 2 {
		t.Errorf("UniqueSubjects = %d, want 2", got.UniqueSubjects)
	}
	if got.TodayCount != 2 {
		t.Errorf("TodayCount = %d, want 2", got.TodayCount)
	}
}

func TestMemoryAdmins(t *testing.T) {
	m := NewMemory()

	if _, err := m.PasswordHash(t.Context(), "root"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wanted %v for unknown admin, got: %v", ErrNotFound, err)
	}

	if err := m.Create(t.Context(), "root", "hash"); err != nil {
		t.Fatal(err)
	}

	if err := m.Create(t.Context(), "root", "other"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("wanted %v on duplicate admin, got: %v", ErrDuplicate, err)
	}

	hash, err := m.PasswordHash(t.Context(), "root")
	if err != nil {
		t.Fatal(err)
	}
	if hash != "hash" {
		t.Errorf("wrong hash returned: %q", hash)
	}
}
