// Copyright (c) 2026 Campora. All rights reserved.
// Author: eng@campora.io

// Package mail delivers transactional email through the Resend HTTP API.
//
// # Architecture
//
// The identity core depends only on a narrow send contract; this package
// provides the production implementation plus a log-backed stand-in for
// local development, where no real delivery provider is configured.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	apiEndpoint    = "https://api.resend.com/emails"
	requestTimeout = 10 * time.Second
)

// Client sends email through the Resend REST API.
type Client struct {
	apiKey string
	from   string
	client *http.Client
}

// New creates a Resend-backed mail client.
func New(apiKey, from string) *Client {
	return &Client{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: requestTimeout},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send delivers a plain-text message to a single recipient.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("mail: encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, apiEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mail: build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("mail: send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("mail: provider returned status %d", response.StatusCode)
	}

	return nil
}

// LogNotifier is a development stand-in that writes messages to the
// structured log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the message instead of delivering it.
func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.logger.Info("outbound email (log delivery)",
		"to", to,
		"subject", subject,
		"body", body,
	)
	return nil
}
