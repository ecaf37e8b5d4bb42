package corpus

import (
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ReadPDF extracts the plain text of every page of a PDF, one message per
// page. Pages that fail to decode are skipped.
func ReadPDF(path string, logger *zap.Logger) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	totalPages := r.NumPage()
	pages := make([]string, 0, totalPages)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			logger.Warn("Skipping null page",
				zap.String("path", path),
				zap.Int("page", pageNum))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract text from page",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		pages = append(pages, text)
	}

	logger.Debug("PDF text extraction completed",
		zap.String("path", path),
		zap.Int("pages", totalPages),
		zap.Int("extracted", len(pages)))
	return pages, nil
}
