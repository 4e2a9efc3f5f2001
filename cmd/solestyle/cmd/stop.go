package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var stopTimeout time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running SoleStyle server",
	Long: `Stop the server recorded in ~/.solestyle/server.pid.

The server gets a graceful stop request first. If it is still running when
--timeout expires it is killed.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "how long to wait for a graceful exit")
	rootCmd.AddCommand(stopCmd)
}

var errNotRunning = errors.New("server is not running")

func runStop(cmd *cobra.Command, _ []string) error {
	path := pidFilePath()
	pid := readPIDFile(path)
	if pid == 0 {
		return fmt.Errorf("%w: no PID file at %s", errNotRunning, path)
	}
	// The PID file is stale or consumed after every outcome below.
	defer os.Remove(path)

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if !processIsAlive(proc) {
		return fmt.Errorf("%w: process %d is gone, removed stale PID file", errNotRunning, pid)
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Stopping SoleStyle server (PID %d)...\n", pid)
	if err := sendGracefulStop(proc); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, stopTimeout)
	defer cancel()
	if waitForExit(ctx, proc, 200*time.Millisecond) {
		fmt.Fprintln(out, "Server stopped.")
		return nil
	}

	fmt.Fprintf(out, "Server still running after %s, killing it.\n", stopTimeout)
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}

// waitForExit polls proc until it exits or ctx is done. It reports whether
// the process exited.
func waitForExit(ctx context.Context, proc *os.Process, every time.Duration) bool {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if !processIsAlive(proc) {
			return true
		}
		select {
		case <-ctx.Done():
			return !processIsAlive(proc)
		case <-t.C:
		}
	}
}
