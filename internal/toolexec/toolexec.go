// Package toolexec runs the external media tools the pipeline shells out to.
package toolexec

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes a command and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Exec runs the command with os/exec. The process is killed when ctx is done.
func Exec(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

var _ Runner = Exec
