package providers

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"profmon/internal/structures"
)

// NewHTTPClientProvider returns the shared outbound client used by the
// fetch provider and the webhook sink. Per-call deadlines come from the
// request context; Timeout is a safety net.
func NewHTTPClientProvider(conf *structures.Config, logger Logger) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warnf(TypeApp, "HTTP/2 disabled for outbound client: %s", err)
	}

	return &http.Client{
		Transport: userAgentTransport{rt: transport, userAgent: conf.Fetch.UserAgent},
		Timeout:   conf.Fetch.Timeout,
	}
}

// userAgentTransport injects a User-Agent into every request.
type userAgentTransport struct {
	rt        http.RoundTripper
	userAgent string
}

func (u userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && u.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", u.userAgent)
	}
	return u.rt.RoundTrip(req)
}
