package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/export"
)

type exportEnrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// ExportResult carries a rendered file back to the handler.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders course rosters as CSV or PDF for instructors.
type ExportService struct {
	enrollments exportEnrollmentReader
	courses     sessionCourseReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(enrollments exportEnrollmentReader, courses sessionCourseReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrollments: enrollments,
		courses:     courses,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Roster exports the course roster in the requested format, "csv" or "pdf".
func (s *ExportService) Roster(ctx context.Context, courseID string, claims *models.JWTClaims, format string) (*ExportResult, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Operation(err, "failed to load course")
	}
	if !canManageCourse(course, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	var enrollments []models.EnrollmentDetail
	for page := 1; ; page++ {
		batch, total, err := s.enrollments.List(ctx, models.EnrollmentFilter{CourseID: courseID, Page: page, PageSize: 100})
		if err != nil {
			return nil, appErrors.Operation(err, "failed to list enrollments")
		}
		enrollments = append(enrollments, batch...)
		if len(batch) == 0 || len(enrollments) >= total {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Learner", "Status", "Progress", "Enrolled At"},
	}
	for _, e := range enrollments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Learner":     e.StudentName,
			"Status":      string(e.Status),
			"Progress":    fmt.Sprintf("%d%%", e.Progress),
			"Enrolled At": e.EnrolledAt.Format("2006-01-02"),
		})
	}

	slug := strings.ReplaceAll(strings.ToLower(course.Title), " ", "-")
	switch strings.ToLower(format) {
	case "csv", "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{FileName: slug + "-roster.csv", ContentType: "text/csv", Data: data}, nil
	case "pdf":
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Roster for %s", course.Title))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{FileName: slug + "-roster.pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
