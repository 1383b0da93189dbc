package jobs

import (
	"context"
	"time"

	"github.com/Spok95/school-lms/internal/workflow"
)

const reminderBatch = 100

// Reminder — часть движка, нужная задаче напоминаний.
type Reminder interface {
	RemindPendingInvitations(ctx context.Context, olderThan time.Duration, batch int) (workflow.RemindStats, error)
}

// InviteReminders — задача: напомнить студентам о приглашениях без ответа
// старше olderThan. Выбирает пачками, пока есть что отправлять.
func InviteReminders(eng Reminder, olderThan time.Duration) Job {
	return func(ctx context.Context) error {
		for {
			st, err := eng.RemindPendingInvitations(ctx, olderThan, reminderBatch)
			remindersSent.Add(float64(st.Sent))
			remindersFailed.Add(float64(st.Failed))
			if err != nil {
				return err
			}
			if st.Attempted() < reminderBatch {
				return nil
			}
		}
	}
}
