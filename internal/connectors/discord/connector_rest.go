package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dwizi/triggerbot/internal/boterr"
)

// apiError is a non-2xx answer from the REST API.
type apiError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("discord %s failed: status=%d body=%s", e.Operation, e.StatusCode, e.Body)
}

func (e *apiError) Unwrap() error {
	return boterr.ErrTransport
}

func statusOf(err error) int {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// call sends one REST request. Interaction callbacks and webhooks are
// authorized by their token in the path, so botAuth is false for those.
func (c *Connector) call(ctx context.Context, operation, method, endpoint string, body any, botAuth bool, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode discord %s: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if botAuth {
		req.Header.Set("Authorization", "Bot "+c.token)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: discord %s: %v", boterr.ErrTransport, operation, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return &apiError{
			Operation:  operation,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(responseBody)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode discord %s: %w", operation, err)
	}
	return nil
}
