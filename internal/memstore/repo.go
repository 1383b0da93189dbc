package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Spok95/school-lms/internal/models"
	"github.com/Spok95/school-lms/internal/workflow"
)

func now() time.Time { return time.Now().UTC() }

// ---- пользователи ----

func (s *state) InsertProfile(_ context.Context, p *models.Profile) error {
	p.ID = s.nextID()
	p.CreatedAt, p.UpdatedAt = now(), now()
	s.profiles[p.ID] = *p
	return nil
}

func (s *state) UpdateProfile(_ context.Context, p models.Profile) error {
	old, ok := s.profiles[p.ID]
	if !ok {
		return workflow.ErrRecordNotFound
	}
	old.Name, old.TelegramChatID, old.UpdatedAt = p.Name, p.TelegramChatID, now()
	s.profiles[p.ID] = old
	return nil
}

func (s *state) DeleteProfile(_ context.Context, id int64) error {
	if _, ok := s.profiles[id]; !ok {
		return workflow.ErrRecordNotFound
	}
	delete(s.profiles, id)
	return nil
}

func (s *state) InsertUser(_ context.Context, u *models.User) error {
	for _, x := range s.users {
		if x.Email == u.Email {
			return workflow.ErrDuplicateRecord
		}
	}
	u.ID = s.nextID()
	u.CreatedAt = now()
	s.users[u.ID] = *u
	return nil
}

func (s *state) UpdateUserAccount(_ context.Context, u models.User) error {
	old, ok := s.users[u.ID]
	if !ok {
		return workflow.ErrRecordNotFound
	}
	for _, x := range s.users {
		if x.ID != u.ID && x.Email == u.Email {
			return workflow.ErrDuplicateRecord
		}
	}
	old.Email, old.PasswordHash = u.Email, u.PasswordHash
	s.users[u.ID] = old
	return nil
}

func (s *state) DeleteUser(_ context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return workflow.ErrRecordNotFound
	}
	delete(s.users, id)
	for eid, e := range s.enrollments {
		if e.StudentID == id {
			s.dropEnrollment(eid)
		}
	}
	for k, g := range s.grades {
		switch {
		case g.StudentID == id:
			delete(s.grades, k)
		case g.GradedBy != nil && *g.GradedBy == id:
			g.GradedBy = nil
			s.grades[k] = g
		}
	}
	return nil
}

func (s *state) withProfile(u models.User) models.User {
	p := s.profiles[u.ProfileID]
	u.Name, u.TelegramChatID = p.Name, p.TelegramChatID
	return u
}

func (s *state) UserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return models.User{}, workflow.ErrRecordNotFound
	}
	return s.withProfile(u), nil
}

func (s *state) UserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return s.withProfile(u), nil
		}
	}
	return models.User{}, workflow.ErrRecordNotFound
}

// ---- каталог ----

func (s *state) InsertCourse(_ context.Context, c *models.Course) error {
	c.ID = s.nextID()
	c.CreatedAt = now()
	s.courses[c.ID] = *c
	return nil
}

func (s *state) UpdateCourse(_ context.Context, c models.Course) error {
	if _, ok := s.courses[c.ID]; !ok {
		return workflow.ErrRecordNotFound
	}
	s.courses[c.ID] = c
	return nil
}

func (s *state) DeleteCourse(_ context.Context, id int64) error {
	if _, ok := s.courses[id]; !ok {
		return workflow.ErrRecordNotFound
	}
	delete(s.courses, id)
	for iid, it := range s.items {
		if it.CourseID == id {
			s.dropItem(iid)
		}
	}
	for eid, e := range s.enrollments {
		if e.CourseID == id {
			s.dropEnrollment(eid)
		}
	}
	delete(s.finals, id)
	return nil
}

func (s *state) CourseByID(_ context.Context, id int64) (models.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return models.Course{}, workflow.ErrRecordNotFound
	}
	return c, nil
}

// LockCourse — транзакции memstore и так идут по одной.
func (s *state) LockCourse(ctx context.Context, id int64) (models.Course, error) {
	return s.CourseByID(ctx, id)
}

func (s *state) ListCourses(_ context.Context, professorID int64) ([]models.Course, error) {
	var out []models.Course
	for _, c := range s.courses {
		if professorID == 0 || c.ProfessorID == professorID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Course) int {
		return cmp.Or(cmp.Compare(a.Prefix, b.Prefix), cmp.Compare(a.Number, b.Number), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *state) InsertItem(_ context.Context, it *models.CourseItem) error {
	if _, ok := s.courses[it.CourseID]; !ok {
		return workflow.ErrRecordNotFound
	}
	it.ID = s.nextID()
	it.CreatedAt = now()
	s.items[it.ID] = *it
	return nil
}

func (s *state) UpdateItem(_ context.Context, it models.CourseItem) error {
	if _, ok := s.items[it.ID]; !ok {
		return workflow.ErrRecordNotFound
	}
	s.items[it.ID] = it
	return nil
}

func (s *state) DeleteItem(_ context.Context, id int64) error {
	if _, ok := s.items[id]; !ok {
		return workflow.ErrRecordNotFound
	}
	s.dropItem(id)
	return nil
}

func (s *state) dropItem(id int64) {
	delete(s.items, id)
	for qid, q := range s.questions {
		if q.ItemID == id {
			delete(s.questions, qid)
		}
	}
	for sid, sub := range s.submissions {
		if sub.ItemID == id {
			s.dropSubmission(sid)
		}
	}
	for k := range s.grades {
		if k.itemID == id {
			delete(s.grades, k)
		}
	}
}

func (s *state) ItemByID(_ context.Context, id int64) (models.CourseItem, error) {
	it, ok := s.items[id]
	if !ok {
		return models.CourseItem{}, workflow.ErrRecordNotFound
	}
	return it, nil
}

func (s *state) LockItem(ctx context.Context, id int64) (models.CourseItem, error) {
	return s.ItemByID(ctx, id)
}

func (s *state) ListItems(_ context.Context, courseID int64) ([]models.CourseItem, error) {
	var out []models.CourseItem
	for _, it := range s.items {
		if it.CourseID == courseID {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b models.CourseItem) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *state) InsertQuestion(_ context.Context, q *models.QuizQuestion) error {
	if _, ok := s.items[q.ItemID]; !ok {
		return workflow.ErrRecordNotFound
	}
	q.ID = s.nextID()
	opts := make([]models.QuizOption, len(q.Options))
	for i, o := range q.Options {
		o.ID = s.nextID()
		o.QuestionID = q.ID
		opts[i] = o
	}
	q.Options = opts
	stored := *q
	stored.Options = slices.Clone(opts)
	s.questions[q.ID] = stored
	return nil
}

func (s *state) ListQuestions(_ context.Context, itemID int64) ([]models.QuizQuestion, error) {
	var out []models.QuizQuestion
	for _, q := range s.questions {
		if q.ItemID == itemID {
			q.Options = slices.Clone(q.Options)
			slices.SortFunc(q.Options, func(a, b models.QuizOption) int {
				return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
			})
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b models.QuizQuestion) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// ---- записи на курс ----

func (s *state) InsertEnrollment(_ context.Context, e *models.Enrollment) error {
	for _, x := range s.enrollments {
		if x.CourseID == e.CourseID && x.StudentID == e.StudentID {
			return workflow.ErrDuplicateRecord
		}
	}
	e.ID = s.nextID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	e.UpdatedAt = e.CreatedAt
	s.enrollments[e.ID] = *e
	return nil
}

func (s *state) EnrollmentByID(_ context.Context, id int64) (models.Enrollment, error) {
	e, ok := s.enrollments[id]
	if !ok {
		return models.Enrollment{}, workflow.ErrRecordNotFound
	}
	return e, nil
}

func (s *state) FindEnrollment(_ context.Context, courseID, studentID int64) (models.Enrollment, error) {
	for _, e := range s.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID {
			return e, nil
		}
	}
	return models.Enrollment{}, workflow.ErrRecordNotFound
}

func (s *state) SetEnrollmentStatus(_ context.Context, id int64, from, to models.EnrollmentStatus) error {
	e, ok := s.enrollments[id]
	if !ok || e.Status != from {
		return workflow.ErrRecordNotFound
	}
	e.Status, e.UpdatedAt = to, now()
	s.enrollments[id] = e
	return nil
}

func (s *state) DeleteEnrollment(_ context.Context, id int64, status models.EnrollmentStatus) error {
	e, ok := s.enrollments[id]
	if !ok || e.Status != status {
		return workflow.ErrRecordNotFound
	}
	s.dropEnrollment(id)
	return nil
}

func (s *state) dropEnrollment(id int64) {
	delete(s.enrollments, id)
	for sid, sub := range s.submissions {
		if sub.EnrollmentID == id {
			s.dropSubmission(sid)
		}
	}
}

func (s *state) enrollmentView(e models.Enrollment) models.EnrollmentView {
	st := s.withProfile(s.users[e.StudentID])
	c := s.courses[e.CourseID]
	prof := s.withProfile(s.users[c.ProfessorID])
	return models.EnrollmentView{
		Enrollment:     e,
		StudentName:    st.Name,
		StudentEmail:   st.Email,
		StudentChatID:  st.TelegramChatID,
		CoursePrefix:   c.Prefix,
		CourseNumber:   c.Number,
		CourseName:     c.Name,
		ProfessorName:  prof.Name,
		ProfessorEmail: prof.Email,
	}
}

func (s *state) ListCourseEnrollments(_ context.Context, courseID int64, status models.EnrollmentStatus) ([]models.EnrollmentView, error) {
	var out []models.EnrollmentView
	for _, e := range s.enrollments {
		if e.CourseID == courseID && (status == "" || e.Status == status) {
			out = append(out, s.enrollmentView(e))
		}
	}
	slices.SortFunc(out, func(a, b models.EnrollmentView) int {
		return cmp.Or(cmp.Compare(a.StudentName, b.StudentName), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *state) ListStudentEnrollments(_ context.Context, studentID int64, status models.EnrollmentStatus) ([]models.EnrollmentView, error) {
	var out []models.EnrollmentView
	for _, e := range s.enrollments {
		if e.StudentID == studentID && (status == "" || e.Status == status) {
			out = append(out, s.enrollmentView(e))
		}
	}
	slices.SortFunc(out, func(a, b models.EnrollmentView) int {
		return cmp.Or(cmp.Compare(a.CoursePrefix, b.CoursePrefix), cmp.Compare(a.CourseNumber, b.CourseNumber), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *state) StaleInvitations(_ context.Context, before time.Time, limit int) ([]models.EnrollmentView, error) {
	var out []models.EnrollmentView
	for _, e := range s.enrollments {
		if e.Status == models.EnrollmentPending && e.RemindedAt == nil && e.CreatedAt.Before(before) {
			out = append(out, s.enrollmentView(e))
		}
	}
	slices.SortFunc(out, func(a, b models.EnrollmentView) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *state) MarkReminded(_ context.Context, ids []int64, at time.Time) error {
	for _, id := range ids {
		if e, ok := s.enrollments[id]; ok {
			e.RemindedAt = &at
			s.enrollments[id] = e
		}
	}
	return nil
}

// ---- работы ----

func (s *state) GetOrCreateSubmission(_ context.Context, enrollmentID, itemID int64) (models.Submission, bool, error) {
	for _, sub := range s.submissions {
		if sub.EnrollmentID == enrollmentID && sub.ItemID == itemID {
			return sub, false, nil
		}
	}
	sub := models.Submission{
		ID:           s.nextID(),
		EnrollmentID: enrollmentID,
		ItemID:       itemID,
		Status:       models.SubmissionDraft,
		CreatedAt:    now(),
	}
	sub.UpdatedAt = sub.CreatedAt
	s.submissions[sub.ID] = sub
	return sub, true, nil
}

func (s *state) SubmissionByID(_ context.Context, id int64) (models.Submission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return models.Submission{}, workflow.ErrRecordNotFound
	}
	return sub, nil
}

func (s *state) LockSubmission(ctx context.Context, id int64) (models.Submission, error) {
	return s.SubmissionByID(ctx, id)
}

func (s *state) UpdateSubmission(_ context.Context, sub models.Submission, from models.SubmissionStatus) error {
	old, ok := s.submissions[sub.ID]
	if !ok || old.Status != from {
		return workflow.ErrRecordNotFound
	}
	s.submissions[sub.ID] = sub
	return nil
}

func (s *state) dropSubmission(id int64) {
	delete(s.submissions, id)
	for k := range s.responses {
		if k.submissionID == id {
			delete(s.responses, k)
		}
	}
}

func (s *state) FindSubmission(_ context.Context, itemID, studentID int64) (models.Submission, error) {
	for _, sub := range s.submissions {
		if sub.ItemID == itemID && s.enrollments[sub.EnrollmentID].StudentID == studentID {
			return sub, nil
		}
	}
	return models.Submission{}, workflow.ErrRecordNotFound
}

func (s *state) submissionView(sub models.Submission) models.SubmissionView {
	e := s.enrollments[sub.EnrollmentID]
	st := s.withProfile(s.users[e.StudentID])
	it := s.items[sub.ItemID]
	return models.SubmissionView{
		Submission:   sub,
		CourseID:     it.CourseID,
		StudentID:    e.StudentID,
		StudentName:  st.Name,
		StudentEmail: st.Email,
		ItemTitle:    it.Title,
		ItemKind:     it.Kind,
	}
}

func (s *state) ListItemSubmissions(_ context.Context, itemID int64) ([]models.SubmissionView, error) {
	var out []models.SubmissionView
	for _, sub := range s.submissions {
		if sub.ItemID == itemID {
			out = append(out, s.submissionView(sub))
		}
	}
	slices.SortFunc(out, func(a, b models.SubmissionView) int {
		return cmp.Or(cmp.Compare(a.StudentName, b.StudentName), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *state) ListEnrollmentSubmissions(_ context.Context, enrollmentID int64) ([]models.SubmissionView, error) {
	var out []models.SubmissionView
	for _, sub := range s.submissions {
		if sub.EnrollmentID == enrollmentID {
			out = append(out, s.submissionView(sub))
		}
	}
	slices.SortFunc(out, func(a, b models.SubmissionView) int {
		pa, pb := s.items[a.ItemID].Position, s.items[b.ItemID].Position
		return cmp.Or(cmp.Compare(pa, pb), cmp.Compare(a.ItemID, b.ItemID))
	})
	return out, nil
}

func (s *state) UnscoredQuizSubmissions(_ context.Context, courseID int64) ([]models.Submission, error) {
	var out []models.Submission
	for _, sub := range s.submissions {
		it := s.items[sub.ItemID]
		if it.CourseID == courseID && it.Kind == models.Quiz &&
			sub.Status == models.SubmissionSubmitted && sub.AutoScore == nil {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b models.Submission) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// ---- ответы на тесты ----

func (s *state) UpsertResponse(_ context.Context, submissionID, questionID int64, response string) error {
	k := respKey{submissionID, questionID}
	r, ok := s.responses[k]
	if !ok {
		r = models.QuizResponse{SubmissionID: submissionID, QuestionID: questionID}
	}
	r.Response, r.UpdatedAt = response, now()
	s.responses[k] = r
	return nil
}

func (s *state) SetResponseScore(_ context.Context, submissionID, questionID int64, points *float64, feedback string) error {
	k := respKey{submissionID, questionID}
	r, ok := s.responses[k]
	if !ok {
		r = models.QuizResponse{SubmissionID: submissionID, QuestionID: questionID}
	}
	if points != nil {
		v := *points
		points = &v
	}
	r.Points, r.Feedback, r.UpdatedAt = points, feedback, now()
	s.responses[k] = r
	return nil
}

func (s *state) ListResponses(_ context.Context, submissionID int64) ([]models.QuizResponse, error) {
	var out []models.QuizResponse
	for k, r := range s.responses {
		if k.submissionID == submissionID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.QuizResponse) int { return cmp.Compare(a.QuestionID, b.QuestionID) })
	return out, nil
}

// ---- оценки ----

func (s *state) UpsertGrade(_ context.Context, g models.Grade) error {
	s.grades[gradeKey{g.ItemID, g.StudentID}] = g
	return nil
}

func (s *state) FindGrade(_ context.Context, itemID, studentID int64) (models.Grade, error) {
	g, ok := s.grades[gradeKey{itemID, studentID}]
	if !ok {
		return models.Grade{}, workflow.ErrRecordNotFound
	}
	return g, nil
}

func (s *state) gradeView(g models.Grade) models.GradeView {
	it := s.items[g.ItemID]
	st := s.withProfile(s.users[g.StudentID])
	return models.GradeView{
		Grade:       g,
		CourseID:    it.CourseID,
		ItemTitle:   it.Title,
		ItemKind:    it.Kind,
		ItemPoints:  it.Points,
		StudentName: st.Name,
	}
}

func (s *state) listGrades(keep func(models.Grade) bool, order func(a, b models.GradeView) int) []models.GradeView {
	var out []models.GradeView
	for _, g := range s.grades {
		if keep(g) {
			out = append(out, s.gradeView(g))
		}
	}
	slices.SortFunc(out, order)
	return out
}

func (s *state) ListItemGrades(_ context.Context, itemID int64) ([]models.GradeView, error) {
	return s.listGrades(
		func(g models.Grade) bool { return g.ItemID == itemID },
		func(a, b models.GradeView) int {
			return cmp.Or(cmp.Compare(a.StudentName, b.StudentName), cmp.Compare(a.StudentID, b.StudentID))
		},
	), nil
}

func (s *state) ListStudentGrades(_ context.Context, courseID, studentID int64) ([]models.GradeView, error) {
	return s.listGrades(
		func(g models.Grade) bool { return g.StudentID == studentID && s.items[g.ItemID].CourseID == courseID },
		func(a, b models.GradeView) int {
			pa, pb := s.items[a.ItemID].Position, s.items[b.ItemID].Position
			return cmp.Or(cmp.Compare(pa, pb), cmp.Compare(a.ItemID, b.ItemID))
		},
	), nil
}

func (s *state) ListCourseGrades(_ context.Context, courseID int64) ([]models.GradeView, error) {
	return s.listGrades(
		func(g models.Grade) bool { return s.items[g.ItemID].CourseID == courseID },
		func(a, b models.GradeView) int {
			return cmp.Or(cmp.Compare(a.StudentID, b.StudentID), cmp.Compare(a.ItemID, b.ItemID))
		},
	), nil
}

func (s *state) ReplaceFinalGrades(_ context.Context, courseID int64, grades []models.FinalGrade) error {
	s.finals[courseID] = slices.Clone(grades)
	return nil
}

func (s *state) ListFinalGrades(_ context.Context, courseID int64) ([]models.FinalGrade, error) {
	out := slices.Clone(s.finals[courseID])
	for i := range out {
		out[i].StudentName = s.withProfile(s.users[out[i].StudentID]).Name
	}
	slices.SortFunc(out, func(a, b models.FinalGrade) int { return cmp.Compare(a.StudentID, b.StudentID) })
	return out, nil
}

var _ workflow.Repo = (*state)(nil)
