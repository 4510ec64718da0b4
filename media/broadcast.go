package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxUpstreamBody = 2048

// Forwarder asks the external streaming service to play a URL.
type Forwarder struct {
	BaseURL string
	Param   string
	Client  *http.Client
}

// NewForwarder constructs a Forwarder whose requests give up after timeout.
func NewForwarder(baseURL, param string, timeout time.Duration) *Forwarder {
	if param == "" {
		param = "url"
	}
	return &Forwarder{
		BaseURL: baseURL,
		Param:   param,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Endpoint builds the control request URL for audioURL.
func (f *Forwarder) Endpoint(audioURL string) (string, error) {
	u, err := url.Parse(f.BaseURL)
	if err != nil {
		return "", fmt.Errorf("broadcast base url: %w", err)
	}
	q := u.Query()
	q.Set(f.Param, audioURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Forward issues a single GET. Any 2xx is success; anything else, including a
// network error, comes back as an *UpstreamError. There is no retry.
func (f *Forwarder) Forward(ctx context.Context, audioURL string) error {
	endpoint, err := f.Endpoint(audioURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return &UpstreamError{Service: "streamer", Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{
			Service:    "streamer",
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(body)),
		}
	}
	return nil
}

// AbsoluteURL prefixes a site-relative URL with publicBase. Absolute URLs and
// an empty base pass through unchanged.
func AbsoluteURL(publicBase, u string) string {
	if publicBase == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimRight(publicBase, "/") + "/" + strings.TrimLeft(u, "/")
}
