// Package slackclient posts submission notifications to a Slack incoming
// webhook.
package slackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Notifier interface {
	Notify(ctx context.Context, msg *Message) error
}

type Message struct {
	Channel string  `json:"channel,omitempty"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

type Block struct {
	Type string     `json:"type"`
	Text *BlockText `json:"text,omitempty"`
}

type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func SectionBlock(markdown string) Block {
	return Block{Type: "section", Text: &BlockText{Type: "mrkdwn", Text: markdown}}
}

func HeaderBlock(text string) Block {
	return Block{Type: "header", Text: &BlockText{Type: "plain_text", Text: text}}
}

type WebhookNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

func NewWebhookNotifier(webhookURL, channel string) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, msg *Message) error {
	if w.webhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	if msg.Channel == "" {
		msg.Channel = w.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
