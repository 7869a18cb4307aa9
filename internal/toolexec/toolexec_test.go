package toolexec

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExec(t *testing.T) {
	requireShell(t)

	stdout, stderr, err := Exec(context.Background(), "sh", "-c", "echo manifest; echo warning >&2")
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if strings.TrimSpace(string(stdout)) != "manifest" {
		t.Errorf("stdout = %q, want manifest", stdout)
	}
	if strings.TrimSpace(string(stderr)) != "warning" {
		t.Errorf("stderr = %q, want warning", stderr)
	}
}

func TestExec_ExitStatus(t *testing.T) {
	requireShell(t)

	_, stderr, err := Exec(context.Background(), "sh", "-c", "echo no claim found >&2; exit 1")
	if err == nil {
		t.Fatal("Exec() error = nil, want exit status")
	}
	if !strings.Contains(string(stderr), "no claim found") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExec_KilledAtDeadline(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := Exec(ctx, "sleep", "10")
	if err == nil {
		t.Fatal("Exec() error = nil, want killed process")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Exec() returned after %s, want prompt kill at deadline", elapsed)
	}
}
