package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/logger"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const exportTimeLayout = "2006-01-02 15:04:05"

// Export is a rendered workbook.
type Export struct {
	Filename string
	Data     []byte
}

// ExportService renders attempt reports and subject analytics as .xlsx workbooks.
type ExportService struct {
	attempts     *AttemptService
	subjects     *SubjectService
	questionRepo *repository.QuestionRepository
	attemptRepo  *repository.AttemptRepository
	loc          *time.Location
	log          zerolog.Logger
}

// NewExportService creates a new ExportService. Timestamps are written in cfg's timezone.
func NewExportService(
	attempts *AttemptService,
	subjects *SubjectService,
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
	cfg *config.Config,
	log zerolog.Logger,
) *ExportService {
	return &ExportService{
		attempts:     attempts,
		subjects:     subjects,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		loc:          cfg.Location(),
		log:          logger.Component(log, "export_service"),
	}
}

// AttemptReport renders one attempt: a summary sheet and a per-question sheet.
// studentID 0 skips the ownership check.
func (s *ExportService) AttemptReport(ctx context.Context, attemptID uuid.UUID, studentID int) (*Export, error) {
	detail, err := s.attempts.Get(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.GetByID(ctx, detail.SubjectID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.ListByPaper(ctx, detail.PaperID)
	if err != nil {
		return nil, fmt.Errorf("list paper questions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"Attempt", detail.ID.String()},
		{"Subject", subject.Name},
		{"Paper type", string(detail.PaperType)},
		{"Status", string(detail.Status)},
		{"Score", detail.Score},
		{"Total marks", detail.TotalMarks},
		{"Percentage", round2(detail.Percentage)},
		{"Qualification", qualificationLabel(detail.QualificationStatus)},
		{"Correct", detail.CorrectCount},
		{"Incorrect", detail.IncorrectCount},
		{"Skipped", detail.SkippedCount},
		{"Started at", s.formatTime(&detail.StartedAt)},
		{"Completed at", s.formatTime(detail.CompletedAt)},
		{"Timed out", detail.ForceCompleted},
	}
	if err := writeRows(f, summary, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(summary, "A", "A", 16)
	_ = f.SetColWidth(summary, "B", "B", 40)

	answers := make(map[uuid.UUID]model.AttemptAnswer, len(detail.Answers))
	for _, a := range detail.Answers {
		answers[a.QuestionID] = a
	}

	sheet := "Questions"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	qrows := [][]any{{"#", "Question", "Difficulty", "Source", "Selected", "Correct option", "Result", "Marks"}}
	for i, q := range questions {
		a, answered := answers[q.ID]
		result, selected := "skipped", ""
		if answered {
			selected = a.SelectedOption
			result = "incorrect"
			if a.IsCorrect {
				result = "correct"
			}
		}
		qrows = append(qrows, []any{i + 1, q.QuestionText, string(q.Difficulty), string(q.Source), selected, q.CorrectOption, result, a.MarksAwarded})
	}
	if err := writeRows(f, sheet, qrows); err != nil {
		return nil, err
	}
	if err := boldHeader(f, sheet, len(qrows[0])); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheet, "B", "B", 60)

	return s.render(f, fmt.Sprintf("attempt-%s.xlsx", detail.ID))
}

// SubjectAnalytics renders aggregate figures and every attempt for a subject.
func (s *ExportService) SubjectAnalytics(ctx context.Context, subjectID int) (*Export, error) {
	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	analytics, err := s.attempts.Analytics(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	results, _, err := s.attemptRepo.ListResults(ctx, &subjectID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"Subject", subject.Name},
		{"Code", subject.Code},
		{"Attempts", analytics.TotalAttempts},
		{"Completed", analytics.CompletedAttempts},
		{"Average percentage", round2(analytics.AveragePercentage)},
		{"Qualified", analytics.ByQualification[model.QualificationQualified]},
		{"Borderline", analytics.ByQualification[model.QualificationBorderline]},
		{"Not qualified", analytics.ByQualification[model.QualificationNotQualified]},
	}
	if err := writeRows(f, summary, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(summary, "A", "A", 20)

	sheet := "Attempts"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	rrows := [][]any{{"Student", "Email", "Paper type", "Status", "Score", "Total marks", "Percentage", "Qualification", "Started at", "Completed at"}}
	for _, r := range results {
		rrows = append(rrows, []any{
			r.StudentName, r.StudentEmail, string(r.PaperType), string(r.Status),
			r.Score, r.TotalMarks, round2(r.Percentage), qualificationLabel(r.QualificationStatus),
			s.formatTime(&r.StartedAt), s.formatTime(r.CompletedAt),
		})
	}
	if err := writeRows(f, sheet, rrows); err != nil {
		return nil, err
	}
	if err := boldHeader(f, sheet, len(rrows[0])); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(sheet, "A", "B", 28)
	_ = f.SetColWidth(sheet, "I", "J", 20)

	s.log.Debug().Int("subject_id", subjectID).Int("rows", len(results)).Msg("Analytics exported")
	return s.render(f, fmt.Sprintf("analytics-%s.xlsx", subject.Code))
}

func (s *ExportService) render(f *excelize.File, filename string) (*Export, error) {
	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &Export{Filename: filename, Data: buf.Bytes()}, nil
}

func (s *ExportService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(s.loc).Format(exportTimeLayout)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func boldHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func qualificationLabel(q *model.QualificationStatus) string {
	if q == nil {
		return ""
	}
	return string(*q)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
