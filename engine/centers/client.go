package centers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/centrosedu/centros/engine/record"
	"github.com/centrosedu/centros/pkg/logger"
	"github.com/centrosedu/centros/pkg/version"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	centersPath = "/centros"
	typesPath   = "/centros/tipos"

	DefaultTimeout    = 30 * time.Second
	DefaultRetryCount = 3
)

// Fetch failure taxonomy. Every error returned by Client wraps exactly one.
var (
	ErrTransport = errors.New("centers: transport failure")
	ErrStatus    = errors.New("centers: unsuccessful status")
	ErrMalformed = errors.New("centers: malformed payload")
)

// APIError is a non-success answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (status %d)", e.Status)
}

func (e *APIError) Unwrap() error {
	return ErrStatus
}

// Query holds the parameters of a centers listing. Every parameter is sent,
// empty or not; the backend treats an empty value as unconstrained.
type Query struct {
	Locality      string
	Stage         string
	Province      string
	Code          string
	Name          string
	CenterType    string
	OriginAddress string
	Page          int
	RowsPerPage   int
}

// Filters returns the filter parameters keyed by their wire names.
func (q Query) Filters() map[string]string {
	return map[string]string{
		"localidad":       q.Locality,
		"etapa":           q.Stage,
		"provincia":       q.Province,
		"codigo":          q.Code,
		"nombreCentro":    q.Name,
		"tipoCentro":      q.CenterType,
		"direccionOrigen": q.OriginAddress,
	}
}

func (q Query) Params() map[string]string {
	params := q.Filters()
	params["page"] = strconv.Itoa(max(q.Page, 1))
	params["rowsPerPage"] = strconv.Itoa(max(q.RowsPerPage, 1))
	return params
}

// Page is one decoded response of the centers listing.
type Page struct {
	Records []record.Record
	Schema  *record.Schema
	// Total is the backend's count when it reports one; callers must not
	// depend on it for navigation.
	Total    int
	HasTotal bool
}

func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Records)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	Debug      bool
}

// Client is the remote-fetch collaborator for the centers API.
type Client struct {
	http    *resty.Client
	baseURL string
}

func NewClient(cfg Config) (*Client, error) {
	baseURL, err := validateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{http: buildHTTPClient(cfg, baseURL), baseURL: baseURL}, nil
}

func validateBaseURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", fmt.Errorf("base URL must be absolute, got: %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base URL scheme must be http or https, got: %s", parsed.Scheme)
	}
	return raw, nil
}

func buildHTTPClient(cfg Config, baseURL string) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent()).
		SetRetryCount(max(cfg.RetryCount, 0)).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)
	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})
	if cfg.Debug {
		client.SetDebug(true)
	}
	return client
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchCenters retrieves one page of centers.
func (c *Client) FetchCenters(ctx context.Context, q Query) (*Page, error) {
	log := logger.FromContext(ctx)
	body, err := c.get(ctx, centersPath, q.Params())
	if err != nil {
		return nil, err
	}
	rs, err := record.DecodeArray(body, "centros")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	page := &Page{Records: rs.Records, Schema: rs.Schema}
	if total := gjson.GetBytes(body, "total"); total.Type == gjson.Number {
		page.Total = int(total.Int())
		page.HasTotal = true
	}
	for i, r := range page.Records {
		if err := page.Schema.Validate(r); err != nil {
			log.Debug("Center does not match result schema", "index", i, "error", err)
		}
	}
	log.Debug("Centers fetched", "page", q.Page, "rows", len(page.Records), "total", page.Total)
	return page, nil
}

// FetchCenterTypes retrieves the distinct center types.
func (c *Client) FetchCenterTypes(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, typesPath, nil)
	if err != nil {
		return nil, err
	}
	types, err := record.DecodeStrings(body, "tipos")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return types, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, path, err)
	}
	body := resp.Body()
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &APIError{Status: resp.StatusCode(), Message: errorMessage(body)}
	}
	if apiErr := embeddedError(body); apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

func errorMessage(body []byte) string {
	for _, path := range []string{"error", "detail", "message"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String {
			return v.Str
		}
	}
	return strings.TrimSpace(string(body))
}

// embeddedError detects failures the backend reports as a 2xx body of the
// form [{"error": "..."}, status].
func embeddedError(body []byte) *APIError {
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil
	}
	msg := root.Get("0.error")
	if msg.Type != gjson.String {
		return nil
	}
	status := int(root.Get("1").Int())
	if status == 0 {
		status = 500
	}
	return &APIError{Status: status, Message: msg.Str}
}
