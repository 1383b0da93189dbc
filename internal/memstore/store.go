// Package memstore — хранилище движка в памяти для unit-тестов.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

type respKey struct{ submissionID, questionID int64 }

type gradeKey struct{ itemID, studentID int64 }

type state struct {
	seq         int64
	profiles    map[int64]models.Profile
	users       map[int64]models.User
	courses     map[int64]models.Course
	items       map[int64]models.CourseItem
	questions   map[int64]models.QuizQuestion
	enrollments map[int64]models.Enrollment
	submissions map[int64]models.Submission
	responses   map[respKey]models.QuizResponse
	grades      map[gradeKey]models.Grade
	finals      map[int64][]models.FinalGrade
}

func newState() *state {
	return &state{
		profiles:    map[int64]models.Profile{},
		users:       map[int64]models.User{},
		courses:     map[int64]models.Course{},
		items:       map[int64]models.CourseItem{},
		questions:   map[int64]models.QuizQuestion{},
		enrollments: map[int64]models.Enrollment{},
		submissions: map[int64]models.Submission{},
		responses:   map[respKey]models.QuizResponse{},
		grades:      map[gradeKey]models.Grade{},
		finals:      map[int64][]models.FinalGrade{},
	}
}

// clone — копия для транзакции. Значения в картах не меняются на месте,
// поэтому достаточно поверхностной копии карт.
func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		profiles:    maps.Clone(s.profiles),
		users:       maps.Clone(s.users),
		courses:     maps.Clone(s.courses),
		items:       maps.Clone(s.items),
		questions:   maps.Clone(s.questions),
		enrollments: maps.Clone(s.enrollments),
		submissions: maps.Clone(s.submissions),
		responses:   maps.Clone(s.responses),
		grades:      maps.Clone(s.grades),
		finals:      maps.Clone(s.finals),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store — потокобезопасная реализация workflow.Store. Транзакции
// сериализуются; при ошибке изменения отбрасываются.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ workflow.Store = (*Store)(nil)

func New() *Store { return &Store{st: newState()} }

func (s *Store) Atomic(ctx context.Context, fn func(workflow.Repo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.st.clone()
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx
	return nil
}

func (s *Store) View(ctx context.Context, fn func(workflow.Repo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}
