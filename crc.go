// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package htu21d

// checkCRC reports whether checksum is valid for the 16 bit raw code.
// The divisor is the datasheet polynomial x^8+x^5+x^4+1 aligned to bit
// 23 of the remainder. Long division over the 16 data bit positions
// leaves a zero remainder iff the checksum matches.
func checkCRC(raw uint16, checksum byte) bool {
	remainder := uint32(raw)<<8 | uint32(checksum)
	divisor := uint32(0x988000)
	for i := 0; i < 16; i++ {
		if remainder&(uint32(1)<<(23-i)) != 0 {
			remainder ^= divisor
		}
		divisor >>= 1
	}
	return remainder == 0
}

// crc8 computes the checksum the sensor appends to a result frame. Same
// generator as the Sensirion sensors (0x31) but with a zero initial
// value.
func crc8(raw uint16) byte {
	var crc byte
	for _, val := range []byte{byte(raw >> 8), byte(raw)} {
		crc ^= val
		for i := 0; i < 8; i++ {
			if crc&0x80 == 0 {
				crc <<= 1
			} else {
				crc = crc<<1 ^ 0x31
			}
		}
	}
	return crc
}
