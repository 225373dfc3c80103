package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/brightclass/identity-go/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#auth-incidents",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.ProviderIncidentPayload{
		Kind:       notify.KindCallbackTimeout,
		ClientID:   "client-1",
		IdentityID: "ident-1",
		Role:       "teacher",
		Error:      "deadline exceeded",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#auth-incidents" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !containsAll(
		text,
		[]string{"Auth provider incident", "callback_timeout", "client-1", "ident-1", "teacher", "deadline exceeded"},
	) {
		t.Fatalf("message text missing fields: %s", text)
	}
}

func TestFormatMessageEscapesError(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.ProviderIncidentPayload{
		Kind:  notify.KindProviderUnreachable,
		Error: "dial <upstream> & refused",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "dial &lt;upstream&gt; &amp; refused") {
		t.Fatalf("expected escaped error text, got: %s", text)
	}
}

func TestFormatMessageMetadataSorted(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.ProviderIncidentPayload{
		Kind: notify.KindRecoveryExhausted,
		Metadata: map[string]string{
			"attempts": "3",
			"account":  "new",
		},
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	account := strings.Index(text, "account: new")
	attempts := strings.Index(text, "attempts: 3")
	if account == -1 || attempts == -1 {
		t.Fatalf("expected metadata entries in text: %s", text)
	}
	if account > attempts {
		t.Fatalf("expected metadata keys sorted, got: %s", text)
	}
}

func TestFormatMessageDefaultSeverity(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.ProviderIncidentPayload{Kind: notify.KindSessionWiped})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !strings.Contains(text, "Severity: "+notify.SeverityCritical) {
		t.Fatalf("expected default critical severity, got: %s", text)
	}
}

func containsAll(text string, substrs []string) bool {
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}
