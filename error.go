// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package htu21d

import "fmt"

// DataIntegrityError is returned when the checksum of a result frame
// does not match its payload. The measurement should be retried by the
// caller; the driver does not retry on its own.
type DataIntegrityError struct {
	Raw      uint16
	Checksum byte
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("htu21d: crc mismatch on raw code 0x%04x (checksum 0x%02x)", e.Raw, e.Checksum)
}

// MalformedFrameError is returned when a result frame is not exactly 3
// bytes: MSB, LSB, checksum.
type MalformedFrameError struct {
	Length int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("htu21d: malformed result frame of %d bytes, expected 3", e.Length)
}

// UnsupportedUnitError is returned for a temperature unit outside
// Celsius and Fahrenheit.
type UnsupportedUnitError struct {
	Unit TemperatureUnit
}

func (e *UnsupportedUnitError) Error() string {
	return fmt.Sprintf("htu21d: unsupported temperature unit %d", e.Unit)
}

// UnsupportedResolutionError is returned for a resolution value that is
// not one of the four register encodings.
type UnsupportedResolutionError struct {
	Resolution Resolution
}

func (e *UnsupportedResolutionError) Error() string {
	return fmt.Sprintf("htu21d: unsupported resolution 0x%02x", byte(e.Resolution))
}
