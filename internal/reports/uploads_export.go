package reports

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"skytrack-cloud/internal/audit"
)

// BuildUploadSummaryXLSX renders per-day upload totals as a workbook.
func BuildUploadSummaryXLSX(summaries []audit.DailySummary) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "uploads"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Day")
	_ = f.SetCellValue(sheet, "B1", "Uploads")
	_ = f.SetCellValue(sheet, "C1", "Failures")
	_ = f.SetCellValue(sheet, "D1", "Bytes")
	_ = f.SetCellValue(sheet, "E1", "Avg Attempts")
	for i, s := range summaries {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), s.Day.Format("2006-01-02"))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), s.Uploads)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), s.Failures)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), s.Bytes)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), s.AvgTries)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildUploadSummaryPDF renders per-day upload totals as a PDF.
func BuildUploadSummaryPDF(summaries []audit.DailySummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Upload Summary")
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Uploads", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Failures", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Bytes", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg Attempts", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, s := range summaries {
		pdf.CellFormat(35, 6, s.Day.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", s.Uploads), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", s.Failures), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", s.Bytes), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", s.AvgTries), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UploadSummaryHandler serves the daily upload summary from the audit log
// in the format chosen at construction.
type UploadSummaryHandler struct {
	repo   *audit.Repository
	format string
}

// NewUploadSummaryHandler constructs the xlsx export handler.
func NewUploadSummaryHandler(repo *audit.Repository) *UploadSummaryHandler {
	return &UploadSummaryHandler{repo: repo, format: "xlsx"}
}

// NewUploadSummaryPDFHandler constructs the pdf export handler.
func NewUploadSummaryPDFHandler(repo *audit.Repository) *UploadSummaryHandler {
	return &UploadSummaryHandler{repo: repo, format: "pdf"}
}

// ServeHTTP exports a daily summary document. Query param "days" bounds the
// lookback (default 30).
func (h *UploadSummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.repo == nil {
		http.Error(w, "audit log not configured", http.StatusServiceUnavailable)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	to := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -days)
	summaries, err := h.repo.SummarizeDays(r.Context(), from, to)
	if err != nil {
		http.Error(w, "summary query error", http.StatusInternalServerError)
		return
	}

	var data []byte
	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	filename := "uploads.xlsx"
	if h.format == "pdf" {
		contentType = "application/pdf"
		filename = "uploads.pdf"
		data, err = BuildUploadSummaryPDF(summaries)
	} else {
		data, err = BuildUploadSummaryXLSX(summaries)
	}
	if err != nil {
		http.Error(w, "export build error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}
