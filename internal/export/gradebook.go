// Package export строит xlsx-выгрузки.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/school-lms/internal/workflow"
)

const gradebookSheet = "Gradebook"

// GradebookFile — строка на студента, колонка на элемент курса, затем
// сумма баллов, процент и буквенная оценка. Пустая ячейка — оценки нет.
func GradebookFile(gb workflow.Gradebook) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", gradebookSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"Student", "Email"}
	for _, it := range gb.Items {
		header = append(header, fmt.Sprintf("%s (%g)", it.Title, it.Points))
	}
	header = append(header, "Earned", "Possible", "Percentage", "Letter")
	if err := f.SetSheetRow(gradebookSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	for i, st := range gb.Students {
		row := []any{st.StudentName, st.StudentEmail}
		scores := gb.Grades[st.StudentID]
		for _, it := range gb.Items {
			if v, ok := scores[it.ID]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		fg := gb.FinalGrades[st.StudentID]
		row = append(row, fg.Earned, fg.Possible, fg.Percentage, fg.Letter)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(gradebookSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := applyDefaultFormatting(f, gradebookSheet); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteGradebook пишет ведомость в w.
func WriteGradebook(w io.Writer, gb workflow.Gradebook) error {
	f, err := GradebookFile(gb)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteTo(w)
	return err
}

// GradebookFilename, например "CS 101 Algorithms - gradebook.xlsx".
func GradebookFilename(gb workflow.Gradebook) string {
	return sanitizeFileName(fmt.Sprintf("%s %s - gradebook.xlsx", gb.Course.Code(), gb.Course.Name))
}
