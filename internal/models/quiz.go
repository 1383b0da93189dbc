package models

import "time"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool { return t == MultipleChoice || t == ShortAnswer }

type QuizQuestion struct {
	ID       int64        `json:"id"`
	ItemID   int64        `json:"item_id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	Points   float64      `json:"points"`
	Position int          `json:"position"`
	Options  []QuizOption `json:"options,omitempty"`
}

type QuizOption struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	Position   int    `json:"position"`
}

// CorrectOption — id варианта, отмеченного верным.
func (q QuizQuestion) CorrectOption() (int64, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID, true
		}
	}
	return 0, false
}

// QuizResponse — ответ на вопрос в работе. Points пуст, пока ответ не
// оценён автоматически или преподавателем.
type QuizResponse struct {
	SubmissionID int64     `json:"submission_id"`
	QuestionID   int64     `json:"question_id"`
	Response     string    `json:"response"`
	Points       *float64  `json:"points,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
