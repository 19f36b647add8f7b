package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mem"
)

func TestSoftPageMapInsertThenLookup(t *testing.T) {
	s := newSoftPageMap()
	ok := s.Insert(0x1000, mem.Pa_t(0x4000), true, false, MemNormal)
	require.True(t, ok)

	pa, ok := s.Lookup(0x1000)
	require.True(t, ok)
	require.Equal(t, mem.Pa_t(0x4000), pa)
}

func TestSoftPageMapInsertFailsWhenAlreadyMapped(t *testing.T) {
	s := newSoftPageMap()
	require.True(t, s.Insert(0x1000, mem.Pa_t(0x4000), true, false, MemNormal))
	require.False(t, s.Insert(0x1000, mem.Pa_t(0x5000), true, false, MemNormal))
}

func TestSoftPageMapRemoveClearsEntry(t *testing.T) {
	s := newSoftPageMap()
	s.Insert(0x1000, mem.Pa_t(0x4000), true, false, MemNormal)

	wasMapped, pa, _, _ := s.Remove(0x1000, false)
	require.True(t, wasMapped)
	require.Equal(t, mem.Pa_t(0x4000), pa)

	_, ok := s.Lookup(0x1000)
	require.False(t, ok)
}

func TestSoftPageMapProtectIsNoopWhenUnmapped(t *testing.T) {
	s := newSoftPageMap()
	require.NotPanics(t, func() { s.Protect(0x1000, true, false) })
}
