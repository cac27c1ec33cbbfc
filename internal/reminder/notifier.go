package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"snapline/internal/config"
	"snapline/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

// Notifier delivers reminders to the configured webhooks.
type Notifier struct {
	hooks  []config.WebhookConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewNotifier(hooks []config.WebhookConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		hooks:  hooks,
		client: &http.Client{Timeout: defaultWebhookTimeout},
		logger: logger,
		now:    time.Now,
	}
}

type webhookPayload struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	SentAt   string          `json:"sent_at"`
	Reminder domain.Reminder `json:"reminder"`
}

// Report summarizes one Notify call.
type Report struct {
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Notify posts every reminder to every enabled webhook whose event filter
// matches the reminder's event type. Delivery keeps going after a failure;
// all failures are returned joined.
func (n *Notifier) Notify(ctx context.Context, reminders []domain.Reminder) (Report, error) {
	var (
		report Report
		errs   []error
	)
	for _, hook := range n.hooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		filter := newEventFilter(hook.Events)
		for _, r := range reminders {
			if !filter.match(string(r.EventType)) {
				report.Skipped++
				continue
			}
			if err := n.post(ctx, hook, r); err != nil {
				report.Failed++
				n.logger.Warn("reminder delivery failed", "url", hook.URL, "event_id", r.EventID, "error", err)
				errs = append(errs, fmt.Errorf("deliver %s to %s: %w", r.EventID, hook.URL, err))
				continue
			}
			report.Delivered++
		}
	}
	n.logger.Info("reminders notified", "delivered", report.Delivered, "skipped", report.Skipped, "failed", report.Failed)
	return report, errors.Join(errs...)
}

func (n *Notifier) post(ctx context.Context, hook config.WebhookConfig, r domain.Reminder) error {
	delivery := uuid.NewString()
	eventType := "reminder." + string(r.EventType)
	data, err := json.Marshal(webhookPayload{
		ID:       delivery,
		Type:     eventType,
		SentAt:   n.now().UTC().Format(time.RFC3339),
		Reminder: r,
	})
	if err != nil {
		return err
	}
	client := n.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Snapline-Event", eventType)
	req.Header.Set("X-Snapline-Delivery", delivery)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Snapline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
