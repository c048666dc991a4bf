package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskdeck/taskdeck/internal/events"
)

// Client posts task event notifications to a configured webhook (typically a
// chat integration or an email relay). Delivery is best effort.
type Client struct {
	httpClient *http.Client
	webhookURL string
	baseURL    string
	timeout    time.Duration
}

// NewClient creates a webhook client. An empty webhookURL disables delivery.
func NewClient(webhookURL, baseURL string, timeoutMS int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		webhookURL: webhookURL,
		baseURL:    baseURL,
		timeout:    time.Duration(timeoutMS) * time.Millisecond,
	}
}

// Enabled reports whether a webhook is configured.
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

// Register subscribes the client to the task events worth notifying about.
func (c *Client) Register(bus *events.Bus) {
	if !c.Enabled() {
		log.Info().Msg("Notification webhook not configured, task notifications disabled")
		return
	}
	for _, t := range []events.Type{
		events.TaskAssigned,
		events.ReviewRequested,
		events.TaskApproved,
		events.TaskReturned,
	} {
		bus.Subscribe(t, c.Post)
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

// Post sends one event to the webhook.
// This method NEVER returns errors to the caller - all failures are logged at
// WARN level so notification outages cannot affect the request path.
func (c *Client) Post(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := webhookPayload{Text: c.buildMessageText(ev)}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		log.Warn().
			Err(err).
			Str("event_type", string(ev.Type)).
			Str("task_id", ev.TaskID.String()).
			Msg("Failed to marshal notification payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Warn().
			Err(err).
			Str("webhook_url", "<set>").
			Msg("Failed to create notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Warn().
				Err(err).
				Dur("timeout_ms", c.timeout).
				Str("event_type", string(ev.Type)).
				Str("task_id", ev.TaskID.String()).
				Msg("Notification webhook timed out")
		} else {
			log.Warn().
				Err(err).
				Str("event_type", string(ev.Type)).
				Str("task_id", ev.TaskID.String()).
				Msg("Failed to send notification")
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("event_type", string(ev.Type)).
			Str("task_id", ev.TaskID.String()).
			Msg("Notification webhook returned error status")
		return
	}

	log.Info().
		Str("event_type", string(ev.Type)).
		Str("task_id", ev.TaskID.String()).
		Msg("Notification sent")
}

func (c *Client) buildMessageText(ev events.Event) string {
	taskURL := fmt.Sprintf("%s/tasks/%s", c.baseURL, ev.TaskID)

	switch ev.Type {
	case events.TaskAssigned:
		return fmt.Sprintf("📋 You were assigned to *%s*\n<%s|Open task>", ev.TaskTitle, taskURL)
	case events.ReviewRequested:
		return fmt.Sprintf("👀 *%s* was submitted for review\n<%s|Open task>", ev.TaskTitle, taskURL)
	case events.TaskApproved:
		return fmt.Sprintf("✅ *%s* was approved\n<%s|Open task>", ev.TaskTitle, taskURL)
	case events.TaskReturned:
		return fmt.Sprintf("↩️ *%s* was returned for revision\n<%s|Open task>", ev.TaskTitle, taskURL)
	default:
		return fmt.Sprintf("Task update on *%s*\n<%s|Open task>", ev.TaskTitle, taskURL)
	}
}
