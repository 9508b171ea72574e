package services

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// PDFExportClient proxies on-demand bill exports to the document-generation
// collaborator. Read-only; never part of a ledger transaction.
type PDFExportClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPDFExportClient() *PDFExportClient {
	url := os.Getenv("PDF_EXPORT_BASE_URL")
	if url == "" {
		url = "http://pdf-exporter:3000"
	}
	return &PDFExportClient{
		baseURL: url,
		apiKey:  os.Getenv("PDF_EXPORT_API_KEY"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// ExportBill fetches the rendered PDF for a bill.
func (c *PDFExportClient) ExportBill(billID uint) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/bills/%d/pdf", c.baseURL, billID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach pdf exporter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pdf export failed with status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
