package wire

import "encoding/binary"

// ByteOrder returns the encoding/binary.ByteOrder for the RTPS E flag
// (bit 0 of a submessage's flags octet): 1 = little-endian, 0 = big-endian
// (spec §4.1).
func ByteOrder(endiannessFlag bool) binary.ByteOrder {
	if endiannessFlag {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// FlagBit reports the E-flag bit to encode for the given byte order.
func FlagBit(order binary.ByteOrder) bool {
	return order == binary.LittleEndian
}
