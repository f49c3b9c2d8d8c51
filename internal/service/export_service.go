package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/labelforge/labelforge-api/internal/models"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
	"github.com/labelforge/labelforge-api/pkg/export"
)

// ExportFormat identifies a supported download format.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type exportJobLister interface {
	List(ctx context.Context, filter models.PrepressJobFilter) ([]models.PrepressJob, int, error)
}

// ExportResult carries the rendered document and its metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders the filtered prepress queue into downloadable
// documents for planning meetings.
type ExportService struct {
	jobs   exportJobLister
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs the service.
func NewExportService(jobs exportJobLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		jobs:   jobs,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
		now:    time.Now,
	}
}

var queueExportHeaders = []string{
	"Job Card", "Status", "Priority", "Designer", "PO Number", "Product", "Company", "Due Date", "Started", "Completed",
}

// Queue renders every job matching the filter, ignoring pagination.
func (s *ExportService) Queue(ctx context.Context, filter models.PrepressJobFilter, format ExportFormat) (*ExportResult, error) {
	filter.Page = 1
	filter.PageSize = 10000

	jobsList, _, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load jobs for export")
	}

	dataset := export.Dataset{
		Headers: queueExportHeaders,
		Rows:    make([]map[string]string, 0, len(jobsList)),
	}
	for _, job := range jobsList {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Job Card":  job.JobCardID,
			"Status":    string(job.Status),
			"Priority":  string(job.Priority),
			"Designer":  stringOrDash(job.AssignedDesignerID),
			"PO Number": stringOrDash(job.PONumber),
			"Product":   stringOrDash(job.ProductCode),
			"Company":   stringOrDash(job.CompanyName),
			"Due Date":  dateOrDash(job.DueDate),
			"Started":   dateOrDash(job.StartedAt),
			"Completed": dateOrDash(job.CompletedAt),
		})
	}

	stamp := s.now().UTC().Format("20060102-150405")
	switch format {
	case FormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("prepress-queue-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case FormatPDF:
		content, err := s.pdf.RenderLandscape(dataset, "Prepress Queue")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("prepress-queue-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// ParseExportFormat validates a query-string format value.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
}

func stringOrDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}
