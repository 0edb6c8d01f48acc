// Package utils carries small host-environment checks run before probing.
package utils

import (
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// CheckPrivileges notes when the process lacks root; raw ICMP sockets will
// then fail and the datagram fallback is used instead.
func CheckPrivileges(logger *slog.Logger) {
	if runtime.GOOS != "windows" && os.Geteuid() != 0 {
		logger.Info("Running as non-root; raw sockets may be refused and the datagram fallback used.")
	}
}

// CheckFileDescriptorLimit warns when the worker count gets close to the
// open-file limit on POSIX systems.
func CheckFileDescriptorLimit(logger *slog.Logger, workers int) {
	if runtime.GOOS == "windows" {
		return
	}
	var rLimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err == nil {
		if uint64(workers) >= rLimit.Cur-100 { // 100 is a safety margin
			logger.Warn("Worker count is close to the file descriptor limit.",
				"workers", workers, "limit", rLimit.Cur)
		}
	}
}
