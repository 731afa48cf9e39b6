package scheduler

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// PIDFile guards against two engines trading the same accounts. A stale
// file left by a crashed process is reclaimed when its pid is gone.
type PIDFile struct {
	path string
}

// AcquirePIDFile writes the current pid, failing when another live process
// already holds the file.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if raw, err := os.ReadFile(path); err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if perr == nil && pid > 0 && pid != os.Getpid() {
			alive, aerr := process.PidExists(int32(pid))
			if aerr == nil && alive {
				return nil, fmt.Errorf("engine already running with pid %d (%s)", pid, path)
			}
		}
		// Stale or unreadable: reclaim.
		_ = os.Remove(path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}
	return &PIDFile{path: path}, nil
}

// Release removes the pid file. Safe to call once at shutdown.
func (p *PIDFile) Release() error {
	if p == nil {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}
