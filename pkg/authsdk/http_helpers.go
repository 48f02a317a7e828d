package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// maxBodyBytes bounds how much of an auth response is read.
const maxBodyBytes = 1 << 20

// apiResponse is a fully read response body with its status.
type apiResponse struct {
	StatusCode int
	Body       []byte
}

func (r *apiResponse) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// serverMessage extracts the platform's error message from the body.
func (r *apiResponse) serverMessage() string {
	var errResp ErrorResponse
	if err := json.Unmarshal(r.Body, &errResp); err != nil {
		return ""
	}
	return errResp.text()
}

// decode unmarshals the body into target, reporting a malformed response on
// failure.
func (r *apiResponse) decode(target any) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return newAuthError(ErrMalformedResponse, r.StatusCode, "", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// postJSON sends body as JSON and reads the whole response. Transport
// failures come back as ErrNetwork; status handling is left to the caller.
// A non-empty bearer is attached as the Authorization header.
func (c *SDKClient) postJSON(ctx context.Context, path string, body any, bearer string) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), bearer)
}

func (c *SDKClient) do(ctx context.Context, method, path string, body io.Reader, bearer string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	return readResponse(resp)
}

// readResponse reads the body of resp. The caller closes it.
func readResponse(resp *http.Response) (*apiResponse, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(fmt.Errorf("failed to read response body: %w", err))
	}

	return &apiResponse{StatusCode: resp.StatusCode, Body: data}, nil
}
