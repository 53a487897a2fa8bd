// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os"
	"time"
)

// FileChecker verifies a file exists and carries content. Used for the
// feed artifact.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file presence.
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusUnhealthy,
				Error:   "file not found",
				Message: c.path,
			}
		}
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	if info.IsDir() {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "expected file, got directory",
		}
	}

	if info.Size() == 0 {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "file is empty",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "file exists and readable",
	}
}

// WritableDirChecker verifies a directory accepts writes by creating and
// removing a probe file.
type WritableDirChecker struct {
	name string
	dir  string
}

// NewWritableDirChecker creates a checker for directory writability.
func NewWritableDirChecker(name, dir string) *WritableDirChecker {
	return &WritableDirChecker{name: name, dir: dir}
}

func (c *WritableDirChecker) Name() string { return c.name }

func (c *WritableDirChecker) Check(_ context.Context) CheckResult {
	f, err := os.CreateTemp(c.dir, ".ready-*")
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: c.dir,
		}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return CheckResult{
		Status:  StatusHealthy,
		Message: "directory is writable",
	}
}

// LastRefreshChecker reports on the most recent refresh cycle. A daemon
// that has never refreshed successfully has nothing to serve and is
// unready; a failed refresh with older data behind it only degrades,
// since the API keeps serving stored announcements.
type LastRefreshChecker struct {
	status func() (time.Time, string)
	maxAge time.Duration
}

// NewLastRefreshChecker creates a checker over a status snapshot func
// returning the last successful run and the last error message.
func NewLastRefreshChecker(status func() (time.Time, string), maxAge time.Duration) *LastRefreshChecker {
	return &LastRefreshChecker{status: status, maxAge: maxAge}
}

func (c *LastRefreshChecker) Name() string { return "last_refresh" }

func (c *LastRefreshChecker) Check(_ context.Context) CheckResult {
	lastRun, lastError := c.status()

	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "no successful refresh yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last refresh failed; serving stored announcements",
		}
	}

	if c.maxAge > 0 && time.Since(lastRun) > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "last successful refresh too long ago",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last refresh successful",
	}
}

// PingChecker adapts a ping-style dependency probe into a Checker. Strict
// failures make the daemon unready; informational ones only degrade it.
type PingChecker struct {
	name    string
	strict  bool
	timeout time.Duration
	ping    func(ctx context.Context) error
}

// NewPingChecker creates a checker around ping.
func NewPingChecker(name string, strict bool, timeout time.Duration, ping func(ctx context.Context) error) *PingChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PingChecker{name: name, strict: strict, timeout: timeout, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		status := StatusDegraded
		if c.strict {
			status = StatusUnhealthy
		}
		return CheckResult{
			Status: status,
			Error:  err.Error(),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "reachable",
	}
}
