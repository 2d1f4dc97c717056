package main

import (
	"io"
	"testing"

	"pkt.systems/pslog"
)

func TestSmokeBaseURLFromEnv(t *testing.T) {
	_ = newSmokeCommand(pslog.NewStructured(io.Discard))
	t.Setenv("HELPER_BACKEND_URL", "http://10.9.8.7:9000")
	if got := smokeBaseURL(false); got != "http://10.9.8.7:9000" {
		t.Fatalf("got %q", got)
	}
	// --local wins over the environment.
	if got := smokeBaseURL(true); got != "http://127.0.0.1:8000" {
		t.Fatalf("got %q", got)
	}
}

func TestSmokeBaseURLFlagWinsOverEnv(t *testing.T) {
	cmd := newSmokeCommand(pslog.NewStructured(io.Discard))
	t.Setenv("HELPER_BACKEND_URL", "http://10.9.8.7:9000")
	if err := cmd.Flags().Set("base-url", "http://flagged:8000"); err != nil {
		t.Fatal(err)
	}
	if got := smokeBaseURL(false); got != "http://flagged:8000" {
		t.Fatalf("got %q", got)
	}
}

func TestSmokeBaseURLDefault(t *testing.T) {
	_ = newSmokeCommand(pslog.NewStructured(io.Discard))
	if got := smokeBaseURL(false); got != "http://127.0.0.1:8000" {
		t.Fatalf("got %q", got)
	}
}
