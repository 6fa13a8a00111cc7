package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tjfontaine/agentgate/internal/auth"
)

func TestKeygen(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantKey  string
		wantUser string
	}{
		{"given key", []string{"keygen", "--user", "alice", "secret"}, "secret", "alice"},
		{"default user", []string{"keygen", "secret"}, "secret", auth.DefaultUserID},
		{"generated key", []string{"keygen"}, "", auth.DefaultUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newCommand()
			cmd.Writer = &out
			if err := cmd.Run(context.Background(), tt.args); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			got := out.String()
			key := tt.wantKey
			if key == "" {
				first := strings.SplitN(got, "\n", 2)[0]
				key = strings.TrimPrefix(first, "API Key: ")
				if !strings.HasPrefix(key, "ag-") || len(key) != 3+48 {
					t.Fatalf("generated key = %q, want ag- plus 48 hex chars", key)
				}
			}
			if !strings.Contains(got, `key_hash: "`+auth.HashAPIKey(key)+`"`) {
				t.Errorf("output = %q, want the hash of %q", got, key)
			}
			if !strings.Contains(got, `user_id: "`+tt.wantUser+`"`) {
				t.Errorf("output = %q, want user %q", got, tt.wantUser)
			}
		})
	}
}
