// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package htu21d is a driver for the Measurement Specialties HTU21D(F)
// relative humidity and temperature sensor connected over I²C.
//
// # Datasheet
//
// https://cdn-shop.adafruit.com/datasheets/1899_HTU21D.pdf
//
// # Temperature Accuracy
//
//	Typical accuracy: ±0.3 °C
//
//	Range: -40…+125 °C
//
// # Humidity Accuracy
//
//	Typical accuracy at 25 °C: ±2 % RH
//
//	Range: 0…100 % RH
//
// The sensor answers on the fixed address 0x40. Each measurement is a
// 16 bit code whose two low bits are status bits, protected by a CRC-8
// checksum. Measurement resolution, a diagnostic heater and automatic
// reload of the OTP calibration are controlled through an 8 bit user
// register that survives on-chip between power cycles.
package htu21d
