package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePinsBuffer(t *testing.T) {
	ptr := Allocate(16)
	require.NotZero(t, ptr)
	defer Deallocate(ptr, 16)

	buf, ok := allocations[ptr]
	require.True(t, ok)
	assert.Len(t, buf, 16)
}

func TestAllocateZeroSize(t *testing.T) {
	assert.Zero(t, Allocate(0))
}

func TestDeallocateUnpins(t *testing.T) {
	ptr := Allocate(8)
	require.NotZero(t, ptr)

	Deallocate(ptr, 8)
	_, ok := allocations[ptr]
	assert.False(t, ok)
}

func TestPackUnpackPtrLen(t *testing.T) {
	tests := []struct {
		name   string
		ptr    uint32
		length uint32
	}{
		{name: "zero", ptr: 0, length: 0},
		{name: "typical", ptr: 0x0001_0000, length: 4096},
		{name: "high bit set", ptr: 0x8000_0000, length: 0x8000_0000},
		{name: "max", ptr: 0xFFFF_FFFF, length: 0xFFFF_FFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ptr, length := unpackPtrLen(packPtrLen(tt.ptr, tt.length))
			assert.Equal(t, tt.ptr, ptr)
			assert.Equal(t, tt.length, length)
		})
	}
}

func TestWriteResultRoundTrip(t *testing.T) {
	data := []byte(`{"hello":"world"}`)

	packed := writeResult(data)
	require.NotZero(t, packed)
	ptr, length := unpackPtrLen(packed)
	defer Deallocate(ptr, length)

	assert.Equal(t, data, readFromMemory(ptr, length))
}

func TestWriteResultEmpty(t *testing.T) {
	assert.Zero(t, writeResult(nil))
}
