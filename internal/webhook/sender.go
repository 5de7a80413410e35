package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/voyagerhq/voyager/internal/constants"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// responseBodyLimit caps how much of the receiver's response is read for
// logging.
const responseBodyLimit = 4 * 1024

// Sender POSTs signed payloads to webhook callback urls.
//
// Delivery is at-most-one-outcome: a non-2xx response is logged and NOT
// retried at this layer (the receiver saw the payload); only transport-level
// failures are retried by the underlying client, and surface as
// ErrFailedToSendWebhook when exhausted.
type Sender struct {
	client *retryablehttp.Client
	logger zerolog.Logger
}

// NewSender creates a webhook sender with the given request timeout.
func NewSender(timeout time.Duration, logger zerolog.Logger) *Sender {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil
	// Never retry on a received response: the receiver already observed the
	// payload once. Only transport errors are retried.
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return resp == nil && err != nil, nil
	}
	return &Sender{client: client, logger: logger}
}

// Send POSTs the payload with timestamp and signature headers. A non-OK
// response is logged and swallowed; a transport failure returns a wrapped
// ErrFailedToSendWebhook.
func (s *Sender) Send(ctx context.Context, url string, payload []byte, apiKey string) error {
	timestamp := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	signature := GenerateSignature(payload, apiKey)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", voyagererrors.ErrFailedToSendWebhook, err)
	}
	req.Header.Set(constants.WebhookTimestampHeader, timestamp)
	req.Header.Set(constants.WebhookSignatureHeader, signature)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", voyagererrors.ErrFailedToSendWebhook, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.logger.Info().
			Str("webhook_url", url).
			Int("status_code", resp.StatusCode).
			Msg("webhook sent successfully")
		return nil
	}

	s.logger.Warn().
		Str("webhook_url", url).
		Int("status_code", resp.StatusCode).
		Str("response_body", string(body)).
		Msg("webhook received non-ok response")
	return nil
}
