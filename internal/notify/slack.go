package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
)

// OpsSink receives a one-line copy of every alert for the operators.
type OpsSink interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans one message out to every sink and returns all failures.
type Multi []OpsSink

func (m Multi) Send(ctx context.Context, title, text string) error {
	var errs error
	for _, s := range m {
		if s == nil {
			continue
		}
		errs = multierr.Append(errs, s.Send(ctx, title, text))
	}
	return errs
}

type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil when no webhook is configured.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, _ := json.Marshal(slackPayload{Text: "*" + title + "*\n" + text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack: status %d", resp.StatusCode)
	}
	return nil
}
