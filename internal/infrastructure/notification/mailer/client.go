// Package mailer is the HTTP client for the mail-relay collaborator.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	from       string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, from string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Send(ctx context.Context, msg domain.MailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return domain.WrapError(domain.ErrValidation, "send mail", fmt.Errorf("empty recipient"))
	}

	request := map[string]string{
		"from":    c.from,
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
		"kind":    msg.Kind,
	}

	call := func(ctx context.Context) error {
		return c.post(ctx, request)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "mailer.send", call, classifyMailError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapMailTemporary("send mail", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &relayStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(detail)),
		}
	}
	return nil
}

type relayStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *relayStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mail relay status: %s", e.Status)
	}
	return fmt.Sprintf("mail relay status: %s: %s", e.Status, e.Body)
}

func classifyMailError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *relayStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func wrapMailTemporary(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	class := classifyMailError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
