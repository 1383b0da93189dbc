// Package notify доставляет студентам приглашения на курсы.
package notify

import (
	"fmt"

	"github.com/Spok95/school-lms/internal/models"
)

func inviteText(inv models.EnrollmentView) string {
	return fmt.Sprintf("%s приглашает вас на курс %s «%s».\nПриглашение №%d: примите или отклоните его в личном кабинете.",
		inv.ProfessorName, inv.CourseCode(), inv.CourseName, inv.ID)
}

func reminderText(inv models.EnrollmentView) string {
	return fmt.Sprintf("Напоминание: приглашение на курс %s «%s» ещё ждёт ответа (№%d).",
		inv.CourseCode(), inv.CourseName, inv.ID)
}
