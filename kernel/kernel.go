// Package kernel is the thin shutdown orchestrator: the external
// scheduler/boot collaborator (§1's process/scheduler subsystem) that
// drives per-CPU teardown at system shutdown, per §5's shutdown
// sequence. It has no state of its own — it exists to give
// AddressSpace.Destroy and Port.Disown a caller beyond their own unit
// tests.
package kernel

import (
	"golang.org/x/sync/errgroup"

	"ipc"
	"vm"
)

/// CPU is one core's shutdown-time state: the address space it was
/// running (if any — idle cores may have none) and the ports it owns
/// and must disown before its address space goes away.
type CPU struct {
	AS    *vm.AddressSpace_t
	Ports []*ipc.Port_t
}

/// Shutdown tears down every CPU concurrently: each CPU disowns its
/// ports (waking any blocked Listen/Connect with EHUNGUP and closing
/// pending connections) and then destroys its address space. A single
/// CPU's teardown never blocks another's, matching spec §5's "shutdown
/// proceeds independently per CPU" sequencing. Every CPU's teardown runs
/// to completion; none of them reports an error, so Shutdown returns nil.
func Shutdown(cpus []CPU) error {
	var g errgroup.Group
	for _, c := range cpus {
		c := c
		g.Go(func() error {
			for _, p := range c.Ports {
				p.Disown()
			}
			if c.AS != nil {
				c.AS.Destroy()
			}
			return nil
		})
	}
	return g.Wait()
}
