package audio

import "encoding/binary"

// Int16s decodes little-endian 16-bit samples. A trailing odd byte is
// ignored.
func Int16s(b []byte) []int16 {
	out := make([]int16, len(b)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// PutInt16s encodes samples into b and returns the number of bytes written,
// stopping when b is full.
func PutInt16s(b []byte, samples []int16) int {
	n := min(len(samples), len(b)/BytesPerSample)
	for i := range n {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(samples[i]))
	}
	return n * BytesPerSample
}
