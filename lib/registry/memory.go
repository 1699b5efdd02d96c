package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory implements all three registry boundaries in process. It exists for
// tests and for running the daemon without a database; it does not survive a
// restart.
type Memory struct {
	lock     sync.Mutex
	subjects map[string]Subject
	records  []presenceRecord
	admins   map[string]string
}

type presenceRecord struct {
	subjectID string
	at        time.Time
}

func NewMemory() *Memory {
	return &Memory{
		subjects: map[string]Subject{},
		admins:   map[string]string{},
	}
}

func (m *Memory) Exists(_ context.Context, subjectID string) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, ok := m.subjects[subjectID]
	return ok, nil
}

func (m *Memory) Register(_ context.Context, subjectID string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.subjects[subjectID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, subjectID)
	}

	m.subjects[subjectID] = Subject{
		SubjectID: subjectID,
		CreatedAt: time.Now(),
	}

	return nil
}

func (m *Memory) List(_ context.Context) ([]Subject, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	result := make([]Subject, 0, len(m.subjects))
	for _, subject := range m.subjects {
		result = append(result, subject)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (m *Memory) Record(_ context.Context, subjectID string, at time.Time, _ string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.records = append(m.records, presenceRecord{subjectID: subjectID, at: at})
	return nil
}

func (m *Memory) Analytics(_ context.Context) (Analytics, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	seen := map[string]bool{}
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)

	var result Analytics
	for _, rec := range m.records {
		result.TotalRecords++
		seen[rec.subjectID] = true
		if !rec.at.UTC().Before(todayStart) {
			result.TodayCount++
		}
	}
	result.UniqueSubjects = len(seen)

	return result, nil
}

func (m *Memory) Create(_ context.Context, username, passwordHash string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.admins[username]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, username)
	}

	m.admins[username] = passwordHash
	return nil
}

func (m *Memory) PasswordHash(_ context.Context, username string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	hash, ok := m.admins[username]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, username)
	}

	return hash, nil
}
