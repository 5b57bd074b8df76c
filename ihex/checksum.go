package ihex

// Checksum computes the Intel-HEX record checksum: the two's complement of
// the 8-bit sum of all bytes from BYTE COUNT through DATA.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}
