//go:build windows

package cmd

import (
	"os"

	"golang.org/x/sys/windows"
)

// stillActive is the exit code GetExitCodeProcess reports for a live process.
const stillActive = 259

func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func processIsAlive(proc *os.Process) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	return windows.GetExitCodeProcess(h, &code) == nil && code == stillActive
}

// Windows has no catchable termination signal for another process.
func sendGracefulStop(proc *os.Process) error {
	return proc.Kill()
}
