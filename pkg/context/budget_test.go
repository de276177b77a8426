package context_test

import (
	"errors"
	"strings"
	"testing"

	ctxeng "github.com/JSON-Bjorn/context-engineering-lesson/pkg/context"
	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

func TestNewBudget_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		max      int
		overhead int
	}{
		{"zero max", 0, 0},
		{"negative max", -10, 0},
		{"negative overhead", 100, -1},
		{"overhead equals max", 100, 100},
		{"overhead above max", 100, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctxeng.NewBudget(tt.max, tt.overhead, wordCounter{})
			if !errors.Is(err, coreerrors.ErrInvalidBudget) {
				t.Errorf("NewBudget(%d, %d) error = %v, want ErrInvalidBudget", tt.max, tt.overhead, err)
			}
		})
	}
}

func TestBudget_AddAndRemaining(t *testing.T) {
	b, err := ctxeng.NewBudget(100, 20, wordCounter{})
	if err != nil {
		t.Fatalf("NewBudget() error = %v", err)
	}

	if got := b.Remaining(); got != 80 {
		t.Errorf("Remaining() = %d, want 80", got)
	}
	if !b.CanAdd(80) {
		t.Error("CanAdd(80) should be true on an empty budget")
	}
	if b.CanAdd(81) {
		t.Error("CanAdd(81) should be false")
	}
	if !b.Add(50) {
		t.Fatal("Add(50) should succeed")
	}
	if b.Add(31) {
		t.Error("Add(31) should fail once 50 are used")
	}
	if got := b.Used(); got != 50 {
		t.Errorf("Used() = %d after rejected add, want 50", got)
	}
	if b.Add(-5) {
		t.Error("negative additions must be rejected")
	}
	if !b.AddText("one two three") {
		t.Error("AddText should succeed")
	}
	if got := b.Remaining(); got != 27 {
		t.Errorf("Remaining() = %d, want 27", got)
	}
	if exact := strings.TrimSpace(strings.Repeat("w ", 27)); !b.CanAddText(exact) || b.CanAddText(exact+" w") {
		t.Error("CanAddText boundary should sit at the remaining 27 tokens")
	}
	if got := b.Utilization(); got < 0.66 || got > 0.67 {
		t.Errorf("Utilization() = %v, want ~0.6625", got)
	}

	b.Reset()
	if b.Used() != 0 || b.Remaining() != 80 {
		t.Errorf("after Reset used=%d remaining=%d", b.Used(), b.Remaining())
	}
}

func TestBudget_InvariantUnderRandomAdds(t *testing.T) {
	b, _ := ctxeng.NewBudget(500, 50, wordCounter{})
	for i := 0; i < 200; i++ {
		n := (i*37)%60 - 5
		before := b.Used()
		ok := b.Add(n)
		if !ok && b.Used() != before {
			t.Fatalf("rejected Add(%d) changed usage", n)
		}
		if b.Used() > b.Max()-b.Overhead() {
			t.Fatalf("used %d exceeds available %d", b.Used(), b.Max()-b.Overhead())
		}
	}
}
