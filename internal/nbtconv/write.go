package nbtconv

// BoolByte encodes a boolean as an NBT byte.
func BoolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
