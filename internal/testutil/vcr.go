// Package testutil holds helpers shared by provider tests.
package testutil

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder replays testdata/fixtures/<cassetteName>.yaml. With
// VCR_MODE=record it talks to the real upstream and rewrites the cassette.
func NewVCRRecorder(t *testing.T, cassetteName string) *recorder.Recorder {
	t.Helper()

	mode := recorder.ModeReplaying
	if Recording() {
		mode = recorder.ModeRecording
	}

	cassettePath := filepath.Join("testdata", "fixtures", cassetteName)

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// Hosts differ between recording and replay; bodies carry timestamps.
	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		u, err := url.Parse(i.URL)
		return err == nil && req.Method == i.Method && req.URL.Path == u.Path
	})
	r.AddFilter(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	})

	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	})
	return r
}

// Recording reports whether cassettes are being re-recorded.
func Recording() bool {
	return os.Getenv("VCR_MODE") == "record"
}

// VCRHTTPClient returns an HTTP client that goes through the recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}
