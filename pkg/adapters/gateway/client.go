package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/retrofx/internal/logging"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

const (
	// MaxUploadBytes mirrors the service's request size limit.
	MaxUploadBytes = 16 << 20

	// DefaultTimeout bounds every call to the service.
	DefaultTimeout = 30 * time.Second

	uploadField = "image"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("file is empty")
)

// RemoteError is an error reported by the service in its JSON body.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.Status, e.Message)
}

// Client calls the image service.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	clock   clockwork.Clock
	logger  *slog.Logger

	breakerSettings gobreaker.Settings
	onBreaker       func(name string, to gobreaker.State)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithClock sets the clock used for cache-busting timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBreaker tunes the processing circuit breaker: it opens after
// maxFailures consecutive failures and probes again after cooldown.
func WithBreaker(maxFailures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breakerSettings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		}
		c.breakerSettings.Timeout = cooldown
	}
}

// WithBreakerListener is notified on every processing breaker transition.
func WithBreakerListener(fn func(name string, to gobreaker.State)) Option {
	return func(c *Client) {
		c.onBreaker = fn
	}
}

// New creates a Client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid service url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid service url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: DefaultTimeout},
		clock:  clockwork.NewRealClock(),
		logger: logging.NewNop(),
		breakerSettings: gobreaker.Settings{
			Name:        "processing",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	// A rejection from a healthy service must not open the breaker.
	c.breakerSettings.IsSuccessful = func(err error) bool {
		var remote *RemoteError
		if errors.As(err, &remote) {
			return remote.Status < http.StatusInternalServerError
		}
		return err == nil
	}
	c.breakerSettings.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn("circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		if c.onBreaker != nil {
			c.onBreaker(name, to)
		}
	}
	c.breaker = gobreaker.NewCircuitBreaker(c.breakerSettings)
	return c, nil
}

// BreakerState reports the processing breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// ValidateUpload checks the name and size the service would accept.
func ValidateUpload(filename string, size int) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, MaxUploadBytes)
	}
	if !allowedExtensions[strings.ToLower(path.Ext(filename))] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFile, filename)
	}
	return nil
}

type uploadResponse struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Upload posts the image as multipart form data and returns the stored filename.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (domain.ImageRef, error) {
	if err := ValidateUpload(filename, len(data)); err != nil {
		return "", domain.UploadFailure("upload", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadField, path.Base(filename))
	if err != nil {
		return "", domain.UploadFailure("upload", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", domain.UploadFailure("upload", err)
	}
	if err := mw.Close(); err != nil {
		return "", domain.UploadFailure("upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("upload"), &body)
	if err != nil {
		return "", domain.UploadFailure("upload", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := c.doJSON(req, &out); err != nil {
		return "", domain.UploadFailure("upload", err)
	}
	if out.Filename == "" {
		return "", domain.UploadFailure("upload", errors.New("service returned no filename"))
	}

	c.logger.Info("image uploaded", "filename", filename, "image_ref", out.Filename, "bytes", len(data))
	return domain.ImageRef(out.Filename), nil
}

type processRequest struct {
	Filename domain.ImageRef `json:"filename"`
	Effects  []effectPayload `json:"effects"`
}

type effectPayload struct {
	Name   domain.EffectID `json:"name"`
	Params map[string]any  `json:"params"`
}

type processResponse struct {
	ProcessedURL string `json:"processed_url"`
	Error        string `json:"error"`
}

// Process asks the service to apply inst to the uploaded image.
func (c *Client) Process(ctx context.Context, ref domain.ImageRef, inst domain.EffectInstance) (domain.RenderableResult, error) {
	payload, err := json.Marshal(processRequest{
		Filename: ref,
		Effects:  []effectPayload{{Name: inst.EffectID, Params: inst.Params}},
	})
	if err != nil {
		return domain.RenderableResult{}, domain.ProcessingFailure("process", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("process"), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		var out processResponse
		if err := c.doJSON(req, &out); err != nil {
			return nil, err
		}
		if out.ProcessedURL == "" {
			return nil, errors.New("service returned no processed_url")
		}
		return out.ProcessedURL, nil
	})
	if err != nil {
		return domain.RenderableResult{}, domain.ProcessingFailure("process", err)
	}
	return domain.RenderableResult{URL: res.(string)}, nil
}

// FetchSource downloads the uploaded original.
func (c *Client) FetchSource(ctx context.Context, ref domain.ImageRef) ([]byte, error) {
	data, err := c.fetch(ctx, c.resolve("static/uploads/"+path.Base(string(ref))))
	if err != nil {
		return nil, domain.UploadFailure("fetch source", err)
	}
	return data, nil
}

// FetchResult downloads a processed image with a timestamp query so no
// intermediary cache can serve bytes from an earlier request.
func (c *Client) FetchResult(ctx context.Context, result domain.RenderableResult) ([]byte, error) {
	target, err := c.CacheBusted(result.URL)
	if err != nil {
		return nil, domain.ProcessingFailure("fetch result", err)
	}
	data, err := c.fetch(ctx, target)
	if err != nil {
		return nil, domain.ProcessingFailure("fetch result", err)
	}
	return data, nil
}

// CacheBusted resolves raw against the service and appends t=<unix millis>.
func (c *Client) CacheBusted(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid result url %q: %w", raw, err)
	}
	u = c.base.ResolveReference(u)
	q := u.Query()
	q.Set("t", strconv.FormatInt(c.clock.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) resolve(rel string) string {
	return c.base.ResolveReference(&url.URL{Path: rel}).String()
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxUploadBytes*4))
}

// doJSON executes req and decodes the body into out. A non-2xx status or a
// non-empty "error" field becomes a *RemoteError.
func (c *Client) doJSON(req *http.Request, out interface{ errorMessage() string }) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.errorMessage() != "" {
			msg = out.errorMessage()
		}
		return &RemoteError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("invalid response body: %w", decodeErr)
	}
	if msg := out.errorMessage(); msg != "" {
		return &RemoteError{Status: resp.StatusCode, Message: msg}
	}
	return nil
}

func (r *uploadResponse) errorMessage() string  { return r.Error }
func (r *processResponse) errorMessage() string { return r.Error }
