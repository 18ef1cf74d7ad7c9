// Package abi encodes the fixed-layout event-state header that the enable-bit protocol shares with
// out-of-process tracers: those tracers write the top 8 bits of the
// enabled word through shared memory, so the header's byte layout is a
// real ABI boundary, not an internal implementation detail. It is
// encoded by explicit little-endian field-by-field packing rather than
// a reflection-driven general serialization library.
package abi

import "encoding/binary"

// HeaderSize is the wire size of an EventStateHeader: 4 bytes version +
// 4 bytes nr_callbacks + 8 bytes enabled.
const HeaderSize = 16

// EventStateHeader is the portion of event state that an
// out-of-process tracer needs to read (and partially write, for the
// enabled word's shared bits) without any knowledge of this core's
// internal callback-vector representation.
type EventStateHeader struct {
	Version     uint32
	NrCallbacks uint32
	Enabled     uint64
}

// Encode packs h into a HeaderSize-byte little-endian buffer, matching
// the raw struct layout an out-of-process reader would mmap.
func Encode(h EventStateHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	binary.LittleEndian.PutUint32(buf[4:8], h.NrCallbacks)
	binary.LittleEndian.PutUint64(buf[8:16], h.Enabled)
	return buf
}

// Decode unpacks a HeaderSize-byte little-endian buffer into an
// EventStateHeader. It panics on a short buffer, matching the core's
// general stance that a malformed ABI view is a fatal, not recoverable,
// condition.
func Decode(buf []byte) EventStateHeader {
	if len(buf) < HeaderSize {
		panic("abi: short event state header")
	}
	return EventStateHeader{
		Version:     binary.LittleEndian.Uint32(buf[0:4]),
		NrCallbacks: binary.LittleEndian.Uint32(buf[4:8]),
		Enabled:     binary.LittleEndian.Uint64(buf[8:16]),
	}
}
