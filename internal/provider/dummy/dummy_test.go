package dummy

import (
	"context"
	"math"
	"testing"

	"github.com/tjfontaine/agentgate/internal/core/ports"
)

func TestLLM_Complete(t *testing.T) {
	resp, err := NewLLM().Complete(context.Background(), &ports.CompletionRequest{
		Messages: []ports.ChatTurn{{Role: ports.ChatRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != Reply {
		t.Errorf("Content = %q, want %q", resp.Content, Reply)
	}
	if resp.UsageReported {
		t.Error("UsageReported = true, want false")
	}
}

func TestLLM_CompleteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLLM().Complete(ctx, &ports.CompletionRequest{}); err == nil {
		t.Error("Complete() error = nil, want context error")
	}
}

func TestEmbedder_Embed(t *testing.T) {
	e := NewEmbedder(20)

	a, err := e.Embed(context.Background(), "cat")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, _ := e.Embed(context.Background(), "cat")
	c, _ := e.Embed(context.Background(), "dog")

	if len(a.Vector) != 20 {
		t.Fatalf("len = %d, want 20", len(a.Vector))
	}

	var norm float64
	same, differ := true, false
	for i := range a.Vector {
		norm += a.Vector[i] * a.Vector[i]
		if a.Vector[i] != b.Vector[i] {
			same = false
		}
		if a.Vector[i] != c.Vector[i] {
			differ = true
		}
	}
	if !same {
		t.Error("equal texts should embed identically")
	}
	if !differ {
		t.Error("different texts should embed differently")
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Errorf("norm = %v, want 1", norm)
	}
}

func TestNewEmbedder_MinimumSize(t *testing.T) {
	if got := NewEmbedder(0).Dimensions(); got != 1 {
		t.Errorf("Dimensions() = %d, want 1", got)
	}
}
