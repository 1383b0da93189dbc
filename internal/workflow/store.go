package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/Spok95/school-lms/internal/models"
)

// Ошибки Repo для ожидаемых ситуаций. Всё остальное — сбой хранилища.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record")
)

// Store — единицы работы. Atomic выполняет fn в одной транзакции и
// откатывает её при ошибке; View выполняет fn без транзакции.
type Store interface {
	Atomic(ctx context.Context, fn func(Repo) error) error
	View(ctx context.Context, fn func(Repo) error) error
}

// Repo — доступ движка к данным.
type Repo interface {
	InsertProfile(ctx context.Context, p *models.Profile) error
	UpdateProfile(ctx context.Context, p models.Profile) error
	DeleteProfile(ctx context.Context, id int64) error
	InsertUser(ctx context.Context, u *models.User) error
	UpdateUserAccount(ctx context.Context, u models.User) error
	DeleteUser(ctx context.Context, id int64) error
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)

	InsertCourse(ctx context.Context, c *models.Course) error
	UpdateCourse(ctx context.Context, c models.Course) error
	DeleteCourse(ctx context.Context, id int64) error
	CourseByID(ctx context.Context, id int64) (models.Course, error)
	// LockCourse, LockItem, LockSubmission читают строку и держат её
	// заблокированной до конца транзакции Atomic.
	LockCourse(ctx context.Context, id int64) (models.Course, error)
	// ListCourses при professorID == 0 отдаёт все курсы.
	ListCourses(ctx context.Context, professorID int64) ([]models.Course, error)

	InsertItem(ctx context.Context, it *models.CourseItem) error
	UpdateItem(ctx context.Context, it models.CourseItem) error
	DeleteItem(ctx context.Context, id int64) error
	ItemByID(ctx context.Context, id int64) (models.CourseItem, error)
	LockItem(ctx context.Context, id int64) (models.CourseItem, error)
	ListItems(ctx context.Context, courseID int64) ([]models.CourseItem, error)

	// InsertQuestion сохраняет вопрос с вариантами и проставляет их id.
	InsertQuestion(ctx context.Context, q *models.QuizQuestion) error
	ListQuestions(ctx context.Context, itemID int64) ([]models.QuizQuestion, error)

	// InsertEnrollment: ErrDuplicateRecord, если для пары (course, student)
	// уже есть строка в любом статусе.
	InsertEnrollment(ctx context.Context, e *models.Enrollment) error
	EnrollmentByID(ctx context.Context, id int64) (models.Enrollment, error)
	FindEnrollment(ctx context.Context, courseID, studentID int64) (models.Enrollment, error)
	// SetEnrollmentStatus переводит строку из from в to; ErrRecordNotFound,
	// если строка не в статусе from.
	SetEnrollmentStatus(ctx context.Context, id int64, from, to models.EnrollmentStatus) error
	// DeleteEnrollment удаляет строку в заданном статусе.
	DeleteEnrollment(ctx context.Context, id int64, status models.EnrollmentStatus) error
	// Списки фильтруются по status, если он не пуст.
	ListCourseEnrollments(ctx context.Context, courseID int64, status models.EnrollmentStatus) ([]models.EnrollmentView, error)
	ListStudentEnrollments(ctx context.Context, studentID int64, status models.EnrollmentStatus) ([]models.EnrollmentView, error)
	StaleInvitations(ctx context.Context, before time.Time, limit int) ([]models.EnrollmentView, error)
	MarkReminded(ctx context.Context, ids []int64, at time.Time) error

	// GetOrCreateSubmission отдаёт работу по (enrollment, item), создавая
	// черновик при отсутствии; created — вставил ли её этот вызов.
	GetOrCreateSubmission(ctx context.Context, enrollmentID, itemID int64) (s models.Submission, created bool, err error)
	SubmissionByID(ctx context.Context, id int64) (models.Submission, error)
	LockSubmission(ctx context.Context, id int64) (models.Submission, error)
	// UpdateSubmission пишет s, только если работа всё ещё в статусе from;
	// иначе ErrRecordNotFound.
	UpdateSubmission(ctx context.Context, s models.Submission, from models.SubmissionStatus) error
	FindSubmission(ctx context.Context, itemID, studentID int64) (models.Submission, error)
	ListItemSubmissions(ctx context.Context, itemID int64) ([]models.SubmissionView, error)
	ListEnrollmentSubmissions(ctx context.Context, enrollmentID int64) ([]models.SubmissionView, error)
	// UnscoredQuizSubmissions — сданные тесты курса без автоматической оценки.
	UnscoredQuizSubmissions(ctx context.Context, courseID int64) ([]models.Submission, error)

	UpsertResponse(ctx context.Context, submissionID, questionID int64, response string) error
	SetResponseScore(ctx context.Context, submissionID, questionID int64, points *float64, feedback string) error
	ListResponses(ctx context.Context, submissionID int64) ([]models.QuizResponse, error)

	UpsertGrade(ctx context.Context, g models.Grade) error
	FindGrade(ctx context.Context, itemID, studentID int64) (models.Grade, error)
	ListItemGrades(ctx context.Context, itemID int64) ([]models.GradeView, error)
	ListStudentGrades(ctx context.Context, courseID, studentID int64) ([]models.GradeView, error)
	ListCourseGrades(ctx context.Context, courseID int64) ([]models.GradeView, error)

	// ReplaceFinalGrades перезаписывает все итоговые оценки курса.
	ReplaceFinalGrades(ctx context.Context, courseID int64, grades []models.FinalGrade) error
	ListFinalGrades(ctx context.Context, courseID int64) ([]models.FinalGrade, error)
}
