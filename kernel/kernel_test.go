package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
	"ipc"
	"mem"
	"token"
	"vm"
)

func TestShutdownDisownsPortsAndDestroysAddressSpaces(t *testing.T) {
	phys := mem.NewPhysmem(8)
	as := vm.NewAddressSpace(phys, vm.DefaultPageMapFactory, nil, uintptr(mem.PGSIZE), 1<<30)
	_, err := as.MapAnonymous(0, uintptr(mem.PGSIZE), vm.FlagRead|vm.FlagWrite|vm.FlagPrivate, false)
	require.Equal(t, defs.Err_t(0), err)

	p, perr := ipc.Create(1, 9001, nil)
	require.Equal(t, defs.Err_t(0), perr)

	require.NoError(t, Shutdown([]CPU{{AS: as, Ports: []*ipc.Port_t{p}}}))

	_, connErr := ipc.Connect(1, 9001, token.System(), 0)
	require.Equal(t, defs.ENOENT, connErr, "a disowned port must be removed from the registry")

	require.NotPanics(t, func() { as.Destroy() }, "Destroy must stay idempotent after Shutdown already destroyed it")
}

func TestShutdownToleratesCPUWithNoAddressSpace(t *testing.T) {
	p, perr := ipc.Create(1, 9002, nil)
	require.Equal(t, defs.Err_t(0), perr)

	require.NoError(t, Shutdown([]CPU{{Ports: []*ipc.Port_t{p}}}))

	_, connErr := ipc.Connect(1, 9002, token.System(), 0)
	require.Equal(t, defs.ENOENT, connErr)
}

func TestShutdownRunsEveryCPUConcurrently(t *testing.T) {
	const n = 6
	cpus := make([]CPU, n)
	for i := range cpus {
		phys := mem.NewPhysmem(4)
		cpus[i].AS = vm.NewAddressSpace(phys, vm.DefaultPageMapFactory, nil, uintptr(mem.PGSIZE), 1<<30)
	}
	require.NoError(t, Shutdown(cpus))
}
