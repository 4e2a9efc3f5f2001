//go:build !windows

package kv

import "syscall"

// lockExclusive blocks until fd holds an exclusive advisory lock.
func lockExclusive(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX)
}

func unlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
