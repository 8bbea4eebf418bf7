package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Resend delivers transactional email through the Resend HTTP API.
type Resend struct {
	client *resty.Client
	from   string
}

func NewResend(baseURL, apiKey, from string) *Resend {
	return &Resend{
		client: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(apiKey).
			SetTimeout(15 * time.Second),
		from: from,
	}
}

func (r *Resend) SendEmail(ctx context.Context, email Email) error {
	type sendRequest struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		HTML    string   `json:"html"`
	}
	type sendResponse struct {
		ID string `json:"id"`
	}
	type errorResponse struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(&sendRequest{
			From:    r.from,
			To:      []string{email.To},
			Subject: email.Subject,
			HTML:    email.HTML,
		}).
		SetResult(&sendResponse{}).
		SetError(&errorResponse{}).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		if e, ok := resp.Error().(*errorResponse); ok && e.Message != "" {
			return fmt.Errorf("unexpected status code %d: %s: %s", resp.StatusCode(), e.Name, e.Message)
		}
		return fmt.Errorf("unexpected status code: %d %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}
