package instance

import "testing"

func TestIDPrefersExplicitInstance(t *testing.T) {
	t.Setenv("LIBRONOVA_INSTANCE_ID", "cron-a")
	t.Setenv("HOSTNAME", "pod-7")
	if got := ID(); got != "cron-a" {
		t.Fatalf("expected cron-a, got %q", got)
	}

	t.Setenv("LIBRONOVA_INSTANCE_ID", "")
	if got := ID(); got != "pod-7" {
		t.Fatalf("expected pod-7, got %q", got)
	}
}
