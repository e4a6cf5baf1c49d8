package idgen

import (
	"strings"
	"testing"
)

func TestGenerateSecureSlug_InvalidLength(t *testing.T) {
	t.Parallel()

	if _, err := GenerateSecureSlug(0); err == nil {
		t.Fatalf("expected error for invalid length")
	}
}

func TestGenerateSecureSlug_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	slug, err := GenerateSecureSlug(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slug) != 10 {
		t.Fatalf("expected slug length 10, got %d", len(slug))
	}

	for i := 0; i < len(slug); i++ {
		if strings.IndexByte(alphabet, slug[i]) == -1 {
			t.Fatalf("slug contains invalid character %q", slug[i])
		}
	}
}

func TestNewOrderID_Format(t *testing.T) {
	t.Parallel()

	id := NewOrderID()
	if !strings.HasPrefix(id, "order_") {
		t.Fatalf("expected order_ prefix, got %s", id)
	}
	if len(id) != len("order_")+8 {
		t.Fatalf("unexpected order id length: %s", id)
	}
}

func TestNewTicketID_UniqueWithinSmallBatch(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := NewTicketID()
		if !strings.HasPrefix(id, "TKT-") {
			t.Fatalf("expected TKT- prefix, got %s", id)
		}
		if _, exists := seen[id]; exists {
			t.Fatalf("duplicate ticket id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}
