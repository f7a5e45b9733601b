package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewIsPrefixedUUID(t *testing.T) {
	a := New("sale")
	b := New("sale")
	if a == b {
		t.Fatalf("expected unique ids, got %s twice", a)
	}
	rest, ok := strings.CutPrefix(a, "sale-")
	if !ok {
		t.Fatalf("expected sale- prefix, got %s", a)
	}
	if _, err := uuid.Parse(rest); err != nil {
		t.Fatalf("expected uuid suffix, got %s: %v", rest, err)
	}
}
