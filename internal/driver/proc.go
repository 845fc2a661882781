//go:build unix

package driver

import (
	"syscall"
	"time"
)

// killGracePeriod is how long the process group gets to exit after
// SIGTERM before SIGKILL.
const killGracePeriod = 5 * time.Second

// terminateTree terminates the entire process group: SIGTERM first, then
// SIGKILL if the group has not been reaped within the grace period. A
// negative pid addresses the whole group, so helpers forked by the agent
// cannot survive as orphans. ESRCH from an already-dead group is harmless.
func terminateTree(pgid int, reaped <-chan struct{}) {
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	select {
	case <-reaped:
	case <-time.After(killGracePeriod):
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
}
