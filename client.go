package vrm

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultURL is the official API endpoint.
	DefaultURL = "https://admin.targetedvrm.us/api/"

	modulePath = "thde.io/vrm"
	tracerName = modulePath

	headerToken  = "x-vrm-token"
	headerAppKey = "x-vrm-appkey"
)

// Client holds configuration needed to call the VRM API.
// Use [New] to create a new client.
//
// A Client only holds immutable configuration after construction and is
// safe for concurrent use.
type Client struct {
	baseURL *url.URL

	token      string
	appKey     string
	httpClient *http.Client
	userAgent  string

	logger *slog.Logger
	tracer trace.Tracer
}

// ClientOption configures a Client before use.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL *url.URL) ClientOption {
	return func(c *Client) {
		u := *baseURL
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.baseURL = &u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets a custom User-Agent header for API requests.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithLogger sets the logger used for request diagnostics.
// Requests are logged at debug level. By default nothing is logged.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracerProvider sets the provider used to create request spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName, trace.WithInstrumentationVersion(version()))
	}
}

// New creates a VRM API client. The token and application key are sent
// verbatim with every request.
func New(token, appKey string, opts ...ClientOption) *Client {
	defaultURL, _ := url.Parse(DefaultURL)

	c := &Client{
		baseURL: defaultURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		token:  token,
		appKey: appKey,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.userAgent == "" {
		c.userAgent = userAgent()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName, trace.WithInstrumentationVersion(version()))
	}

	return c
}

// version returns the module version of the vrm package.
// It returns "devel" if built without module version information.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	return moduleVersion(info)
}

func moduleVersion(info *debug.BuildInfo) string {
	if i := slices.IndexFunc(info.Deps, func(m *debug.Module) bool { return m.Path == modulePath }); i >= 0 {
		return releaseVersion(info.Deps[i].Version)
	}
	if info.Main.Path != modulePath {
		return "devel"
	}
	if v := releaseVersion(info.Main.Version); v != "devel" {
		return v
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return "devel+" + setting.Value[:7]
		}
	}
	return "devel"
}

func releaseVersion(v string) string {
	if v == "" || v == "(devel)" {
		return "devel"
	}
	return v
}

// userAgent returns the default User-Agent string for this package.
func userAgent() string {
	return fmt.Sprintf("go-vrm/%s (%s; %s/%s)", version(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
