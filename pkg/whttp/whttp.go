package whttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const USER_AGENT = "harvestsmart/1.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL         string
	Method      string
	Headers     []WHTTPHeader
	Body        []byte
	ContentType string
}

type WHTTPRes struct {
	StatusCode int
	Body       []byte
	// HTTPTitle is the <title> of an HTML body, handy when a proxy answers instead of the API.
	HTTPTitle string
}

// OK reports a 2xx status.
func (r *WHTTPRes) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// StatusError describes a non-2xx response in one line.
func (r *WHTTPRes) StatusError() error {
	if r.HTTPTitle != "" {
		return fmt.Errorf("unexpected status %d (%s)", r.StatusCode, r.HTTPTitle)
	}
	body := strings.TrimSpace(string(r.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Errorf("unexpected status %d: %s", r.StatusCode, body)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Timeout  time.Duration
	RetryMax int
	Proxy    string
	// Insecure skips TLS certificate checks, for intercepting proxies while debugging.
	Insecure bool
	Logger   LeveledLogger // nil discards retry logs
}

// NewClient returns a retrying client that hands non-2xx responses back to the caller
// instead of turning exhausted retries into an opaque error.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	c.Logger = nil
	if opts.Logger != nil {
		c.Logger = opts.Logger
	}

	if opts.Proxy != "" || opts.Insecure {
		transport := cleanhttp.DefaultPooledTransport()
		if opts.Proxy != "" {
			proxyURL, err := url.Parse(opts.Proxy)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy URL: %v", err)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		if opts.Insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		c.HTTPClient.Transport = transport
	}
	return c, nil
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	var body interface{}
	if wReq.Body != nil {
		body = wReq.Body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if wReq.ContentType != "" {
		req.Header.Set("Content-Type", wReq.ContentType)
	}
	for _, h := range wReq.Headers {
		req.Header.Add(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{StatusCode: resp.StatusCode, Body: bodyBytes}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		if title, ok := getHTMLTitle(bodyBytes); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}
	return wRes, nil
}

// Multipart builds a multipart/form-data body in memory so retries can replay it.
type Multipart struct {
	buf bytes.Buffer
	w   *multipart.Writer
}

func NewMultipart() *Multipart {
	m := &Multipart{}
	m.w = multipart.NewWriter(&m.buf)
	return m
}

func (m *Multipart) WriteField(name, value string) error {
	return m.w.WriteField(name, value)
}

func (m *Multipart) WriteFile(field, filename, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := m.w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

// Finish closes the form and returns its body and content type.
func (m *Multipart) Finish() ([]byte, string, error) {
	if err := m.w.Close(); err != nil {
		return nil, "", err
	}
	return m.buf.Bytes(), m.w.FormDataContentType(), nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}
