package devauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

func TestProvider_BeginAndExchange(t *testing.T) {
	prov, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com", Role: "teacher"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	url, state, nonce, err := prov.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	if !strings.HasPrefix(url, "/auth/callback?") {
		t.Fatalf("unexpected authURL: %s", url)
	}
	if state == "" || nonce == "" {
		t.Fatal("state and nonce should be generated")
	}
	sess, err := prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: state, Nonce: nonce})
	if err != nil {
		t.Fatalf("Exchange error: %v", err)
	}
	if sess.Identity.ID != "dev-user" || sess.Identity.Email != "dev@example.com" {
		t.Fatalf("unexpected identity: %+v", sess.Identity)
	}
	if sess.ExpiresAt.Before(time.Now()) {
		t.Fatal("session should not be expired at issue time")
	}
}

func TestProvider_RequiredFields(t *testing.T) {
	if _, err := NewProvider(Config{Email: "dev@example.com"}); err == nil {
		t.Fatal("expected error when UserID is missing")
	}
	if _, err := NewProvider(Config{UserID: "dev-user"}); err == nil {
		t.Fatal("expected error when Email is missing")
	}
}

func TestProvider_RoleMetadata(t *testing.T) {
	prov, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com", Role: "student"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	ident, err := prov.GetUser(context.Background())
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	meta, ok := ident.Metadata["user_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected user_metadata map, got %+v", ident.Metadata)
	}
	if meta["role"] != "student" {
		t.Fatalf("expected role student, got %v", meta["role"])
	}

	// Empty role simulates a fresh signup with no role attribute yet.
	bare, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	ident, err = bare.GetUser(context.Background())
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if ident.Metadata != nil {
		t.Fatalf("expected nil metadata, got %+v", ident.Metadata)
	}
}

func TestProvider_UpdateUserMetadataMergesNested(t *testing.T) {
	prov, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com", Role: "teacher"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}

	ident, err := prov.UpdateUserMetadata(context.Background(), ports.MetadataPatch{
		"user_metadata": map[string]any{"onboarded": true},
	})
	if err != nil {
		t.Fatalf("UpdateUserMetadata error: %v", err)
	}

	meta, ok := ident.Metadata["user_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected user_metadata map, got %+v", ident.Metadata)
	}
	if meta["role"] != "teacher" {
		t.Fatalf("merge should keep existing role, got %v", meta["role"])
	}
	if meta["onboarded"] != true {
		t.Fatalf("merge should apply new keys, got %v", meta["onboarded"])
	}

	drainEvents(prov)
	if _, err = prov.UpdateUserMetadata(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty patch")
	}
}

func TestProvider_SignOutClearsSession(t *testing.T) {
	prov, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	if _, err = prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev"}); err != nil {
		t.Fatalf("Exchange error: %v", err)
	}
	drainEvents(prov)

	if err = prov.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut error: %v", err)
	}

	sess, err := prov.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session after sign-out, got %+v", sess)
	}

	select {
	case ev := <-prov.Events():
		if ev.Type != identity.EventSignedOut {
			t.Fatalf("expected SIGNED_OUT event, got %s", ev.Type)
		}
	default:
		t.Fatal("expected a sign-out event")
	}
}

func drainEvents(p *Provider) {
	for {
		select {
		case <-p.Events():
		default:
			return
		}
	}
}
