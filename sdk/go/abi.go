package sdk

import "unsafe"

// Memory handoff between host and guest. The host writes requests into
// buffers it obtains from the allocate export and reads responses from
// packed ptr/len return values. allocations pins every handed-out buffer
// so the garbage collector cannot move or reclaim it until the owning
// side calls Deallocate.
var allocations = make(map[uint32][]byte)

// Allocate reserves guest memory the host can write into. Guests expose
// it as the allocate export.
func Allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	allocations[ptr] = buf
	return ptr
}

// Deallocate releases a pinned buffer. Guests expose it as the
// deallocate export.
func Deallocate(ptr uint32, size uint32) {
	delete(allocations, ptr)
}

// copyToMemory writes data at ptr. Pinned buffers are written directly,
// which also keeps the helper usable in host-side tests where a raw
// dereference of the truncated pointer would be invalid.
func copyToMemory(ptr uint32, data []byte) {
	if buf, ok := allocations[ptr]; ok && len(buf) >= len(data) {
		copy(buf, data)
		return
	}
	dest := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data))
	copy(dest, data)
}

// readFromMemory copies length bytes out of guest memory at ptr.
func readFromMemory(ptr uint32, length uint32) []byte {
	data := make([]byte, length)
	if buf, ok := allocations[ptr]; ok && uint32(len(buf)) >= length {
		copy(data, buf[:length])
		return data
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	copy(data, src)
	return data
}

// packPtrLen packs a pointer and length into a single uint64, pointer in
// the high 32 bits.
func packPtrLen(ptr uint32, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen splits a packed uint64 back into pointer and length.
func unpackPtrLen(packed uint64) (uint32, uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// writeResult pins data and returns its packed location for the host to
// read. The host deallocates the buffer after copying it out.
func writeResult(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	ptr := Allocate(uint32(len(data)))
	if ptr == 0 {
		return 0
	}
	copyToMemory(ptr, data)
	return packPtrLen(ptr, uint32(len(data)))
}
