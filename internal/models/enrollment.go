package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentPending, EnrollmentActive, EnrollmentCompleted, EnrollmentDropped:
		return true
	}
	return false
}

type Enrollment struct {
	ID         int64            `json:"id"`
	CourseID   int64            `json:"course_id"`
	StudentID  int64            `json:"student_id"`
	Status     EnrollmentStatus `json:"status"`
	InvitedBy  *int64           `json:"invited_by,omitempty"`
	RemindedAt *time.Time       `json:"-"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// EnrollmentView — запись на курс с именами для списков.
type EnrollmentView struct {
	Enrollment
	StudentName    string `json:"student_name"`
	StudentEmail   string `json:"student_email"`
	StudentChatID  *int64 `json:"-"`
	CoursePrefix   string `json:"course_prefix"`
	CourseNumber   string `json:"course_number"`
	CourseName     string `json:"course_name"`
	ProfessorName  string `json:"professor_name"`
	ProfessorEmail string `json:"professor_email"`
}

func (v EnrollmentView) CourseCode() string {
	return Course{Prefix: v.CoursePrefix, Number: v.CourseNumber}.Code()
}
