package authsdk

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Endpoints are the paths of the platform's auth calls, relative to BaseURL.
type Endpoints struct {
	Login     string
	VerifyOTP string
	Refresh   string
	Logout    string
	Profile   string
}

// DefaultEndpoints returns the paths the platform serves by default.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:     "/auth/login",
		VerifyOTP: "/auth/verify-otp",
		Refresh:   "/auth/refresh-token",
		Logout:    "/auth/logout",
		Profile:   "/auth/me",
	}
}

// Observer receives the result of every auth operation. err is nil on
// success. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveAuth(op string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveAuth(string, error) {}

// SDKClient talks to the platform's auth endpoints. It holds no session
// state; the components built on it share one SessionStore.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Endpoints  Endpoints

	logger   *slog.Logger
	observer Observer

	// loginLimiter throttles login attempts client-side, nil means unlimited.
	loginLimiter *rate.Limiter
}

// ClientOption configures an SDKClient.
type ClientOption func(*SDKClient)

// WithHTTPClient replaces the default HTTP client. It must not be the
// gateway client, auth calls are made unauthenticated.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *SDKClient) { c.HTTPClient = hc }
}

// WithEndpoints overrides the endpoint paths.
func WithEndpoints(e Endpoints) ClientOption {
	return func(c *SDKClient) { c.Endpoints = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *SDKClient) { c.logger = logger }
}

// WithObserver registers an Observer for auth outcomes.
func WithObserver(o Observer) ClientOption {
	return func(c *SDKClient) { c.observer = o }
}

// WithLoginRateLimit allows perMinute login attempts with a burst of the
// same size. Zero or negative disables throttling.
func WithLoginRateLimit(perMinute int) ClientOption {
	return func(c *SDKClient) {
		if perMinute <= 0 {
			c.loginLimiter = nil
			return
		}
		c.loginLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// NewSDKClient creates a client for the platform at baseURL.
func NewSDKClient(baseURL string, opts ...ClientOption) *SDKClient {
	c := &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Endpoints: DefaultEndpoints(),
		logger:    slog.Default(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}
