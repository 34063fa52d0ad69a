package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/export"
)

type roadmapSource interface {
	Roadmap(ctx context.Context, studentID string) (*dto.RoadmapResponse, bool, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportFile is a rendered document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a student's roadmap as CSV or PDF.
type ExportService struct {
	roadmaps  roadmapSource
	csv       tableRenderer
	pdf       tableRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(roadmaps roadmapSource, csv, pdf tableRenderer, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{roadmaps: roadmaps, csv: csv, pdf: pdf, validator: validate, logger: logger}
}

// Roadmap renders the roadmap in the requested format. CSV is the default.
func (s *ExportService) Roadmap(ctx context.Context, studentID string, query dto.ExportQuery) (*ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	format := query.Format
	if format == "" {
		format = dto.ExportFormatCSV
	}

	roadmap, _, err := s.roadmaps.Roadmap(ctx, studentID)
	if err != nil {
		return nil, err
	}
	table := roadmapTable(roadmap)

	file := &ExportFile{Filename: fmt.Sprintf("roadmap-%s.%s", studentID, format)}
	switch format {
	case dto.ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(table)
	default:
		file.ContentType = "text/csv; charset=utf-8"
		file.Data, err = s.csv.Render(table)
	}
	if err != nil {
		return nil, internalError(err, "failed to render roadmap export")
	}

	s.logger.Info("roadmap exported",
		zap.String("student_id", studentID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(file.Data)))
	return file, nil
}

func roadmapTable(r *dto.RoadmapResponse) export.Table {
	table := export.Table{
		Title:   "Roadmap " + r.StudentID,
		Headers: []string{"Grade", "Semester", "Code", "Name", "Credits", "Classification", "Status", "Result"},
	}
	for _, bucket := range r.Semesters {
		for _, c := range bucket.Courses {
			table.Rows = append(table.Rows, []string{
				strconv.Itoa(bucket.GradeLevel),
				strconv.Itoa(bucket.Semester.Number()),
				c.Code,
				c.Name,
				strconv.Itoa(c.Credits),
				string(c.Classification),
				string(c.Status),
				c.Grade,
			})
		}
	}
	return table
}
