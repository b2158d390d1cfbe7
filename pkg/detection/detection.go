// Package detection talks to the remote bunch ripeness detection service.
package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/harvestsmart/harvestsmart/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	_ "golang.org/x/image/webp"
)

const DefaultPath = "/detect"

var (
	// ErrInvalidImage marks a missing, unreadable or undecodable image. No request is sent.
	ErrInvalidImage = errors.New("invalid image")
	// ErrMalformedResponse marks a service answer without usable counts.
	ErrMalformedResponse = errors.New("malformed detection response")
)

// Image is an image ready for upload.
type Image struct {
	URI    string // reference kept in the report; defaults to a file:// URI
	Name   string
	Data   []byte
	Format string // jpeg, png or webp, filled by ValidateImage
}

// LoadImage reads and validates the image at path.
func LoadImage(path string) (*Image, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidImage)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	img := &Image{URI: "file://" + filepath.ToSlash(abs), Name: filepath.Base(path), Data: data}
	if err := ValidateImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// ValidateImage checks that img decodes as a supported format and records it.
func ValidateImage(img *Image) error {
	if img == nil || len(img.Data) == 0 {
		return fmt.Errorf("%w: no image data", ErrInvalidImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidImage, img.Name, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: %s has no pixels", ErrInvalidImage, img.Name)
	}
	img.Format = format
	return nil
}

// Client calls the detection service.
type Client struct {
	url    string
	client *retryablehttp.Client
}

// NewClient posts to baseURL+path. An empty path means DefaultPath.
func NewClient(baseURL, path string, client *retryablehttp.Client) *Client {
	if path == "" {
		path = DefaultPath
	}
	return &Client{url: strings.TrimRight(baseURL, "/") + path, client: client}
}

// Detect uploads img and returns the service's counts. Timestamp is left zero;
// the accumulator stamps it at merge time.
func (c *Client) Detect(ctx context.Context, img *Image) (report.DetectionResult, error) {
	var out report.DetectionResult
	if err := ValidateImage(img); err != nil {
		return out, err
	}

	form := whttp.NewMultipart()
	if err := form.WriteFile("image", img.Name, "image/"+img.Format, img.Data); err != nil {
		return out, err
	}
	body, contentType, err := form.Finish()
	if err != nil {
		return out, err
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:         c.url,
		Method:      http.MethodPost,
		Body:        body,
		ContentType: contentType,
	}, c.client)
	if err != nil {
		return out, fmt.Errorf("detection request failed: %w", err)
	}
	if !res.OK() {
		return out, fmt.Errorf("detection service: %w", res.StatusError())
	}
	return parseResult(res.Body, img.URI)
}

func parseResult(body []byte, fallbackURI string) (report.DetectionResult, error) {
	var out report.DetectionResult
	if !gjson.ValidBytes(body) {
		return out, fmt.Errorf("%w: not JSON", ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(body)

	var err error
	counts := []struct {
		path string
		dst  *int
	}{
		{"totalBunches", &out.TotalBunches},
		{"ripeLevels.ripe", &out.RipeLevels.Ripe},
		{"ripeLevels.underripe", &out.RipeLevels.Underripe},
		{"ripeLevels.overripe", &out.RipeLevels.Overripe},
		{"ripeLevels.abnormal", &out.RipeLevels.Abnormal},
	}
	for _, c := range counts {
		if *c.dst, err = count(doc, c.path); err != nil {
			return report.DetectionResult{}, err
		}
	}
	out.ImageURI = doc.Get("imageUri").String()
	if out.ImageURI == "" {
		out.ImageURI = fallbackURI
	}
	if err := out.Validate(); err != nil {
		return report.DetectionResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// count reads a whole, non-negative number at path.
func count(doc gjson.Result, path string) (int, error) {
	v := doc.Get(path)
	switch {
	case !v.Exists():
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedResponse, path)
	case v.Type != gjson.Number:
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformedResponse, path)
	case v.Num != math.Trunc(v.Num) || v.Num > math.MaxInt32:
		return 0, fmt.Errorf("%w: %s is not a whole count: %s", ErrMalformedResponse, path, v.Raw)
	case v.Num < 0:
		return 0, fmt.Errorf("%w: %s is negative", ErrMalformedResponse, path)
	}
	return int(v.Num), nil
}
