package tokens

import (
	"errors"
	"testing"

	"github.com/tjfontaine/agentgate/internal/core/ports"
)

func TestEstimator_CountText(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short text is one token", "hi", 1},
		{"sixteen chars", "abcdefghijklmnop", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CountText("dummy", tt.text)
			if err != nil {
				t.Fatalf("CountText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CountText() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimator_CountChat(t *testing.T) {
	e := NewEstimator()
	got, err := e.CountChat("dummy", []ports.ChatTurn{
		{Role: ports.ChatRoleUser, Content: "What is 2+2?"},
		{Role: ports.ChatRoleAssistant, Content: "2+2 equals 4."},
	})
	if err != nil {
		t.Fatalf("CountChat() error = %v", err)
	}
	if got < 5 || got > 20 {
		t.Errorf("CountChat() = %d, want between 5 and 20", got)
	}
}

func TestOpenAICounter_CountText(t *testing.T) {
	c := NewOpenAICounter()

	got, err := c.CountText("gpt-4o", "Hello, world!")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if got != 4 {
		t.Errorf("CountText() = %d, want 4", got)
	}
}

func TestOpenAICounter_CountChat(t *testing.T) {
	c := NewOpenAICounter()

	text, err := c.CountText("gpt-4o-mini", "Hello")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	got, err := c.CountChat("gpt-4o-mini", []ports.ChatTurn{{Role: ports.ChatRoleUser, Content: "Hello"}})
	if err != nil {
		t.Fatalf("CountChat() error = %v", err)
	}
	want := text + tokensPerMessage + tokensPerRole + assistantPriming
	if got != want {
		t.Errorf("CountChat() = %d, want %d", got, want)
	}
}

func TestOpenAICounter_SupportsModel(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"GPT-4o-mini", true},
		{"o3-mini", true},
		{"text-embedding-3-small", true},
		{"claude-3-haiku", false},
		{"dummy", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := c.SupportsModel(tt.model); got != tt.want {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestModelToEncoding(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o-2024-08-06", "o200k_base"},
		{"gpt-4-turbo", "cl100k_base"},
		{"text-embedding-3-large", "cl100k_base"},
		{"gpt-9", "o200k_base"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := string(modelToEncoding(tt.model)); got != tt.want {
				t.Errorf("modelToEncoding(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

type failingCounter struct{}

func (failingCounter) CountText(string, string) (int, error)           { return 0, errors.New("boom") }
func (failingCounter) CountChat(string, []ports.ChatTurn) (int, error) { return 0, errors.New("boom") }
func (failingCounter) SupportsModel(string) bool                       { return true }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.GetCounter("gpt-4o").(*OpenAICounter); !ok {
		t.Errorf("GetCounter(gpt-4o) = %T, want *OpenAICounter", r.GetCounter("gpt-4o"))
	}
	if _, ok := r.GetCounter("dummy").(*Estimator); !ok {
		t.Errorf("GetCounter(dummy) = %T, want *Estimator", r.GetCounter("dummy"))
	}

	t.Run("falls back when a counter fails", func(t *testing.T) {
		r := &Registry{fallback: NewEstimator()}
		r.Register(failingCounter{})

		got, err := r.CountText("anything", "abcdefgh")
		if err != nil {
			t.Fatalf("CountText() error = %v", err)
		}
		if got != 2 {
			t.Errorf("CountText() = %d, want 2", got)
		}
	})

	t.Run("no counters", func(t *testing.T) {
		r := &Registry{}
		if _, err := r.CountText("x", "y"); err == nil {
			t.Error("CountText() error = nil, want error")
		}
	})
}
