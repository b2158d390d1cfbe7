// Package collection submits daily reports to the collection center.
package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/harvestsmart/harvestsmart/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const (
	DefaultPath = "/reports"

	fieldDate     = "date"
	fieldFarmerID = "farmerId"
	fieldReport   = "reportData"
	fieldPDF      = "reportPdf"
	pdfFilename   = "report.pdf"
)

// Client implements report.Submitter over multipart HTTP.
type Client struct {
	url    string
	client *retryablehttp.Client
	newID  func() string
}

func NewClient(baseURL, path string, client *retryablehttp.Client) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{
		url:    strings.TrimRight(baseURL, "/") + path,
		client: client,
		newID:  uuid.NewString,
	}
}

// Submit posts sub and decodes the acknowledgment. Transport failures and
// non-2xx answers are errors; a 2xx without success=true is a negative Ack.
func (c *Client) Submit(ctx context.Context, sub report.Submission) (*report.Ack, error) {
	reportData, err := json.Marshal(sub.Report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	form := whttp.NewMultipart()
	for _, f := range [][2]string{
		{fieldDate, sub.Date},
		{fieldFarmerID, sub.FarmerID},
		{fieldReport, string(reportData)},
	} {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if len(sub.Document) > 0 {
		if err := form.WriteFile(fieldPDF, pdfFilename, "application/pdf", sub.Document); err != nil {
			return nil, err
		}
	}
	body, contentType, err := form.Finish()
	if err != nil {
		return nil, err
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:         c.url,
		Method:      http.MethodPost,
		Body:        body,
		ContentType: contentType,
		Headers:     []whttp.WHTTPHeader{{Name: "X-Submission-ID", Value: c.newID()}},
	}, c.client)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.StatusError()
	}

	ack := gjson.ParseBytes(res.Body)
	return &report.Ack{
		Success:   ack.Get("success").Type == gjson.True,
		Message:   ack.Get("message").String(),
		ReceiptID: ack.Get("id").String(),
	}, nil
}
