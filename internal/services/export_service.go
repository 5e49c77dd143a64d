package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/examhub/submission-service/internal/utils"
)

// ExportService renders grading views as spreadsheets for instructors.
type ExportService interface {
	// ExportResults writes one row per official submission of the
	// assessment, the grid an instructor reconciles against their roster.
	ExportResults(ctx context.Context, assessmentID uint, userID string) ([]byte, error)
}

type exportService struct {
	officializer OfficializerService
	logger       utils.Logger
}

func NewExportService(officializer OfficializerService, logger utils.Logger) ExportService {
	return &exportService{officializer: officializer, logger: logger}
}

func (s *exportService) ExportResults(ctx context.Context, assessmentID uint, userID string) ([]byte, error) {
	// ByAssessment carries the grading permission check
	officials, err := s.officializer.ByAssessment(ctx, assessmentID, userID, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"User ID", "Status", "Started At", "Submitted At",
		"Score", "Points Possible", "Attempts", "Best Score", "Released", "Evaluated By",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	const timeLayout = "2006-01-02 15:04:05"

	for rowIndex, sub := range officials {
		status := "complete"
		if sub.IsInProgress() {
			status = "in progress"
		}

		row := []interface{}{sub.UserID, status}

		if sub.StartedAt != nil {
			row = append(row, sub.StartedAt.Format(timeLayout))
		} else {
			row = append(row, "")
		}
		if sub.SubmittedAt != nil {
			row = append(row, sub.SubmittedAt.Format(timeLayout))
		} else {
			row = append(row, "")
		}

		row = append(row, sub.TotalScore(), sub.Assessment.TotalPoints(), sub.SiblingCount)

		if sub.Best != nil {
			row = append(row, sub.Best.TotalScore())
		} else {
			row = append(row, "")
		}

		if sub.IsReleased {
			row = append(row, "Yes")
		} else {
			row = append(row, "No")
		}

		if sub.EvaluatedBy != nil {
			row = append(row, *sub.EvaluatedBy)
		} else {
			row = append(row, "")
		}

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.InfoContext(ctx, "results exported",
		"assessment_id", assessmentID, "rows", len(officials), "by", userID)
	return buf.Bytes(), nil
}
