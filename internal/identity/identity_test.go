package identity

import (
	"strings"
	"testing"
	"time"
)

func TestGuestTokenRoundTrip(t *testing.T) {
	tokens := NewGuestTokens("test-secret", time.Hour)

	caller, token, err := tokens.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !strings.HasPrefix(caller.ID, "guest_") {
		t.Errorf("Expected guest_ id prefix, got %s", caller.ID)
	}
	if caller.Name == "" || caller.Email == "" {
		t.Errorf("Guest identity incomplete: %+v", caller)
	}

	verified, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verified != caller {
		t.Errorf("Round trip mismatch: issued %+v, verified %+v", caller, verified)
	}
}

func TestGuestTokenUniqueIdentities(t *testing.T) {
	tokens := NewGuestTokens("test-secret", time.Hour)

	a, _, err := tokens.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	b, _, err := tokens.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("Consecutive guests share an id: %s", a.ID)
	}
}

func TestGuestTokenRejections(t *testing.T) {
	tokens := NewGuestTokens("test-secret", time.Hour)

	t.Run("Garbage", func(t *testing.T) {
		if _, err := tokens.Verify("not-a-token"); err == nil {
			t.Error("Expected error for garbage token")
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewGuestTokens("other-secret", time.Hour)
		_, token, err := other.Issue()
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := tokens.Verify(token); err == nil {
			t.Error("Expected error for token signed with another secret")
		}
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewGuestTokens("test-secret", -time.Minute)
		_, token, err := expired.Issue()
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, err := tokens.Verify(token); err == nil {
			t.Error("Expected error for expired token")
		}
	})
}
