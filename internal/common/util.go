package common

// WipeBytes overwrites b with zeros. It is used to remove passphrases and
// other sensitive material from memory after use. A nil slice is a no-op.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
