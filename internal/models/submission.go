package models

import "time"

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

func (s SubmissionStatus) Valid() bool {
	return s == SubmissionDraft || s == SubmissionSubmitted
}

type Submission struct {
	ID           int64            `json:"id"`
	EnrollmentID int64            `json:"enrollment_id"`
	ItemID       int64            `json:"item_id"`
	Status       SubmissionStatus `json:"status"`
	Content      string           `json:"content"`
	AutoScore    *float64         `json:"auto_score,omitempty"`
	SubmittedAt  *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type SubmissionView struct {
	Submission
	CourseID     int64    `json:"course_id"`
	StudentID    int64    `json:"student_id"`
	StudentName  string   `json:"student_name"`
	StudentEmail string   `json:"student_email"`
	ItemTitle    string   `json:"item_title"`
	ItemKind     ItemKind `json:"item_kind"`
}

// SubmissionPatch — изменяемые поля; nil значит «не менять».
type SubmissionPatch struct {
	Content *string           `json:"content,omitempty"`
	Status  *SubmissionStatus `json:"status,omitempty"`
}
