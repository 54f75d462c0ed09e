package uuid

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewStringIsVersion7(t *testing.T) {
	id, err := uuid.Parse(NewString())
	if err != nil {
		t.Fatal(err)
	}
	if id.Version() != 7 {
		t.Fatalf("unexpected uuid version: %d", id.Version())
	}
}

func TestNewStringOrdered(t *testing.T) {
	prev := NewString()
	for i := 0; i < 100; i++ {
		next := NewString()
		if next < prev {
			t.Fatalf("ids not ordered: %s < %s", next, prev)
		}
		prev = next
	}
}
