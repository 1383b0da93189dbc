package models

import "time"

type Grade struct {
	ItemID    int64     `json:"item_id"`
	StudentID int64     `json:"student_id"`
	Score     float64   `json:"score"`
	Feedback  string    `json:"feedback,omitempty"`
	Manual    bool      `json:"manual"` // выставлена через GradeItem, автопроверка её не трогает
	GradedBy  *int64    `json:"graded_by,omitempty"`
	GradedAt  time.Time `json:"graded_at"`
}

type GradeView struct {
	Grade
	CourseID    int64    `json:"course_id"`
	ItemTitle   string   `json:"item_title"`
	ItemKind    ItemKind `json:"item_kind"`
	ItemPoints  float64  `json:"item_points"`
	StudentName string   `json:"student_name"`
}

// FinalGrade — итог курса для одного студента.
type FinalGrade struct {
	CourseID    int64   `json:"course_id"`
	StudentID   int64   `json:"student_id"`
	StudentName string  `json:"student_name,omitempty"`
	Earned      float64 `json:"earned"`
	Possible    float64 `json:"possible"`
	Percentage  float64 `json:"percentage"`
	Letter      string  `json:"letter"`
}
