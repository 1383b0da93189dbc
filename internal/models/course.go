package models

import "time"

type Course struct {
	ID          int64     `json:"id"`
	Prefix      string    `json:"prefix"`
	Number      string    `json:"number"`
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	ProfessorID int64     `json:"professor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Code — код курса в каталоге, например "CS 101".
func (c Course) Code() string {
	if c.Number == "" {
		return c.Prefix
	}
	return c.Prefix + " " + c.Number
}

type ItemKind string

const (
	Assignment ItemKind = "assignment"
	Quiz       ItemKind = "quiz"
)

func (k ItemKind) Valid() bool { return k == Assignment || k == Quiz }

// CourseItem — оцениваемый элемент курса. У теста Points равно сумме баллов
// вопросов и пересчитывается каталогом.
type CourseItem struct {
	ID          int64      `json:"id"`
	CourseID    int64      `json:"course_id"`
	Kind        ItemKind   `json:"kind"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Points      float64    `json:"points"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Position    int        `json:"position"`
	CreatedAt   time.Time  `json:"created_at"`
}
