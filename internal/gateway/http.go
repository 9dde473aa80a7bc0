package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxResponseBody = 1 << 20

// NewHTTPClient returns the client shared by all adapters. There are no
// retries; the timeout bounds every provider call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type apiClient struct {
	gateway string
	baseURL string
	http    *http.Client
}

func newAPIClient(gateway, baseURL string, client *http.Client) apiClient {
	if client == nil {
		client = NewHTTPClient(20 * time.Second)
	}
	return apiClient{gateway: gateway, baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

func (c apiClient) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c apiClient) newFormRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. The raw decoded body is
// returned for use as gateway data.
func (c apiClient) do(req *http.Request, op string, out any) (map[string]any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Gateway: c.gateway, Op: op, Err: errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &ProviderError{Gateway: c.gateway, Op: op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "read response")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Gateway: c.gateway, Op: op, StatusCode: resp.StatusCode, Err: errors.Errorf("unexpected response: %s", snippet(body))}
	}

	raw := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, &ProviderError{Gateway: c.gateway, Op: op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode response")}
		}
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return nil, &ProviderError{Gateway: c.gateway, Op: op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode response")}
			}
		}
	}
	return raw, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
