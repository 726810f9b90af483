package common

// PutFloat32s writes each value little-endian into buf starting at offset and returns the
// offset just past the last value written.
func PutFloat32s(buf []byte, offset int, values ...float32) int {
	for _, v := range values {
		putFloat32(buf[offset:offset+4], v)
		offset += 4
	}
	return offset
}
