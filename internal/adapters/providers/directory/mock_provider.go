package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	apperrors "github.com/visionwell/vision-screening/backend/pkg/errors"
)

// MockDirectoryProvider serves a fixed roster for local development without
// a running Directory Service.
type MockDirectoryProvider struct {
	mu       sync.RWMutex
	students map[string]*entities.Student
}

// NewMockDirectoryProvider creates a mock directory seeded with a small
// roster.
func NewMockDirectoryProvider() *MockDirectoryProvider {
	m := &MockDirectoryProvider{students: make(map[string]*entities.Student)}
	for _, s := range []*entities.Student{
		{ID: "stu-001", FirstName: "Amina", LastName: "Okafor", School: "Greenfield Primary", Grade: "4", ConsentOnFile: true, ScreeningStatus: entities.ScreeningStatusNotScreened},
		{ID: "stu-002", FirstName: "Daniel", LastName: "Mensah", School: "Greenfield Primary", Grade: "5", ScreeningStatus: entities.ScreeningStatusNotScreened},
		{ID: "stu-003", FirstName: "Lila", LastName: "Torres", School: "Riverside Academy", Grade: "3", ConsentOnFile: true, ScreeningStatus: entities.ScreeningStatusInProgress},
	} {
		m.students[s.ID] = s
	}
	return m
}

// AddStudent adds or replaces a roster entry.
func (m *MockDirectoryProvider) AddStudent(student *entities.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[student.ID] = student
}

// GetStudent returns one student by id.
func (m *MockDirectoryProvider) GetStudent(ctx context.Context, id string) (*entities.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	student, ok := m.students[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("student with id %s not found", id))
	}
	copied := *student
	return &copied, nil
}

// ListStudents returns students matching the filter.
func (m *MockDirectoryProvider) ListStudents(ctx context.Context, filter providers.StudentFilter) ([]*entities.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*entities.Student
	for _, student := range m.students {
		if filter.School != "" && student.School != filter.School {
			continue
		}
		if filter.Grade != "" && student.Grade != filter.Grade {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(student.FullName()), strings.ToLower(filter.Query)) {
			continue
		}
		copied := *student
		results = append(results, &copied)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(results) {
			return nil, nil
		}
		results = results[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(results) {
		results = results[:filter.Limit]
	}
	return results, nil
}
