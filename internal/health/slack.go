package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SlackNotifier posts dead-set transition messages to a Slack-compatible
// incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier builds a SlackNotifier posting to webhookURL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, client: &http.Client{}}
}

type slackPayload struct {
	Text string `json:"text"`
}

// Notify posts message as a Slack incoming-webhook payload.
func (s *SlackNotifier) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(slackPayload{Text: message})
	if err != nil {
		return fmt.Errorf("health: marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("health: build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health: post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("health: slack webhook returned status %s", resp.Status)
	}
	return nil
}
