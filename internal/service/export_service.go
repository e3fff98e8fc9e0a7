package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/export"
)

// ExportFormat identifies a supported render target.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ParseExportFormat normalises a query parameter into an ExportFormat.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case ExportFormatCSV, ExportFormat(""):
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries rendered bytes with download metadata.
type ExportResult struct {
	Payload     []byte
	Filename    string
	ContentType string
}

// ExportService renders approval audit trails as downloadable files.
type ExportService struct {
	approvals *ApprovalService
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(approvals *ApprovalService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{approvals: approvals, csv: csv, pdf: pdf, logger: logger}
}

// RenderHistory exports the audit trail of one approval.
func (s *ExportService) RenderHistory(ctx context.Context, approvalID string, format ExportFormat) (*ExportResult, error) {
	approval, err := s.approvals.Get(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	entries, err := s.approvals.GetApprovalHistory(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	dataset := historyDataset(entries)
	title := fmt.Sprintf("Approval History - %s (%s)", approval.ApprovalType, approval.Status)

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("approval-history-%s-%s.%s", approvalID, time.Now().UTC().Format("20060102"), format)
	return &ExportResult{Payload: payload, Filename: filename, ContentType: contentType}, nil
}

func historyDataset(entries []models.ApprovalHistory) export.Dataset {
	headers := []string{"Action", "Actor", "Level", "From", "To", "Comments", "Rejection Reason", "At"}
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"Action":           entry.Action,
			"Actor":            entry.ActionBy,
			"Level":            fmt.Sprintf("%d", entry.Level),
			"From":             statusLabel(entry.FromStatus),
			"To":               statusLabel(entry.ToStatus),
			"Comments":         derefStr(entry.Comments),
			"Rejection Reason": derefStr(entry.RejectionReason),
			"At":               entry.ActionAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func statusLabel(status *models.ApprovalStatus) string {
	if status == nil {
		return ""
	}
	return string(*status)
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
