// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package htu21d

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// MeasureMode selects how the controller waits for a conversion.
type MeasureMode int

const (
	// Hold lets the sensor stretch the bus clock until the conversion
	// result is ready, so the read blocks on the bus itself.
	Hold MeasureMode = iota
	// NoHold releases the bus after the trigger command; the driver
	// sleeps for the conversion time before reading the result.
	NoHold
)

// TemperatureUnit is the unit a temperature reading is returned in.
type TemperatureUnit int

const (
	Celsius TemperatureUnit = iota
	Fahrenheit
)

// Resolution selects the measurement precision. The values are the user
// register encodings, split over register bits 7 and 0.
type Resolution byte

const (
	// 12 bit humidity, 14 bit temperature. Power-on default.
	RH12Temp14 Resolution = 0x00
	// 10 bit humidity, 13 bit temperature.
	RH10Temp13 Resolution = 0x80
	// 8 bit humidity, 12 bit temperature.
	RH8Temp12 Resolution = 0x01
	// 11 bit humidity, 11 bit temperature.
	RH11Temp11 Resolution = 0x81
)

const (
	// The sensor only answers on this address.
	DefaultAddress i2c.Addr = 0x40

	// Command bytes from the datasheet.
	cmdMeasureTempHold       byte = 0xe3
	cmdMeasureTempNoHold     byte = 0xf3
	cmdMeasureHumidityHold   byte = 0xe5
	cmdMeasureHumidityNoHold byte = 0xf5
	cmdWriteUserRegister     byte = 0xe6
	cmdReadUserRegister      byte = 0xe7
	cmdSoftReset             byte = 0xfe

	// User register bit assignments.
	maskResolution      byte = 0x81
	bitEndOfBattery     byte = 0x40
	bitHeaterEnabled    byte = 0x04
	bitDisableOTPReload byte = 0x02

	// User register value after a soft reset reloads the OTP defaults.
	powerOnUserRegister byte = 0x02

	// The two low bits of a raw code are status bits, not sample data.
	rawStatusMask uint16 = 0xfffc

	countDivisor = float64(65536)

	// Reload of the OTP defaults after a soft reset takes up to 15ms.
	resetDelay = 15 * time.Millisecond
	// Short settle before a hold mode read. Clock stretching covers the
	// rest of the conversion.
	holdSettleDelay = 10 * time.Millisecond

	minSenseInterval = 100 * time.Millisecond
)

// Maximum conversion times from the datasheet, per configured resolution.
// Used as the no-hold wait so low resolutions don't over-wait.
var tempConversionTime = map[Resolution]time.Duration{
	RH12Temp14: 50 * time.Millisecond,
	RH10Temp13: 25 * time.Millisecond,
	RH8Temp12:  13 * time.Millisecond,
	RH11Temp11: 7 * time.Millisecond,
}

var humidityConversionTime = map[Resolution]time.Duration{
	RH12Temp14: 16 * time.Millisecond,
	RH10Temp13: 5 * time.Millisecond,
	RH8Temp12:  3 * time.Millisecond,
	RH11Temp11: 8 * time.Millisecond,
}

// Sample bit counts per resolution, used to compute Precision().
var tempBits = map[Resolution]uint{
	RH12Temp14: 14,
	RH10Temp13: 13,
	RH8Temp12:  12,
	RH11Temp11: 11,
}

var humidityBits = map[Resolution]uint{
	RH12Temp14: 12,
	RH10Temp13: 10,
	RH8Temp12:  8,
	RH11Temp11: 11,
}

// Opts holds the configuration options for the device.
type Opts struct {
	// Resolution is written to the user register when the device is
	// opened. Later changes go through SetResolution.
	Resolution Resolution
	// MeasurementDelay overrides the per-resolution conversion wait used
	// in no-hold mode. Leave 0 to use the datasheet maximums.
	MeasurementDelay time.Duration
	// ValidateData enables CRC verification of result frames. If the
	// checksum does not match, a DataIntegrityError is returned.
	ValidateData bool
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	Resolution:   RH12Temp14,
	ValidateData: true,
}

// Dev represents an HTU21D humidity/temperature sensor.
type Dev struct {
	d        *i2c.Dev
	opts     Opts
	mu       sync.Mutex
	shutdown chan struct{}
}

// New opens an HTU21D on the supplied bus, resets it and applies the
// requested resolution. The Opts can be nil in which case DefaultOpts is
// used. Use SelfTest() to check the device answered with its documented
// power-on defaults.
func New(bus i2c.Bus, addr i2c.Addr, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if _, ok := tempConversionTime[opts.Resolution]; !ok {
		return nil, &UnsupportedResolutionError{Resolution: opts.Resolution}
	}
	dev := &Dev{d: &i2c.Dev{Bus: bus, Addr: uint16(addr)}, opts: *opts}
	if err := dev.Reset(); err != nil {
		return nil, err
	}
	reg, err := dev.readUserRegister()
	if err != nil {
		return nil, err
	}
	if reg&maskResolution != byte(opts.Resolution) {
		reg = reg&^maskResolution | byte(opts.Resolution)
		if err := dev.writeUserRegister(reg); err != nil {
			return nil, err
		}
	}
	return dev, nil
}

// Reset issues a soft reset and waits for the device to reload its OTP
// defaults. The heater bit is the only setting the reload skips.
func (dev *Dev) Reset() error {
	if err := dev.d.Tx([]byte{cmdSoftReset}, nil); err != nil {
		return fmt.Errorf("htu21d: error resetting %w", err)
	}
	time.Sleep(resetDelay)
	return nil
}

// SelfTest resets the device and compares the user register against the
// documented power-on default. A false result is advisory; the sensor may
// still operate with a register someone else configured.
func (dev *Dev) SelfTest() (bool, error) {
	if err := dev.Reset(); err != nil {
		return false, err
	}
	reg, err := dev.UserRegister()
	if err != nil {
		return false, err
	}
	return reg == powerOnUserRegister, nil
}

// UserRegister returns the raw 8 bit user register. Every call is a bus
// round trip; the driver never caches register state.
func (dev *Dev) UserRegister() (byte, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.readUserRegister()
}

// SetResolution selects one of the four measurement resolutions. The
// heater, OTP reload and battery bits are preserved.
func (dev *Dev) SetResolution(res Resolution) error {
	if _, ok := tempConversionTime[res]; !ok {
		return &UnsupportedResolutionError{Resolution: res}
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	reg, err := dev.readUserRegister()
	if err != nil {
		return err
	}
	reg = reg&^maskResolution | byte(res)&maskResolution
	if err := dev.writeUserRegister(reg); err != nil {
		return err
	}
	dev.opts.Resolution = res
	return nil
}

// ToggleHeater flips the diagnostic heater bit. Relative humidity should
// drop while the heater raises the die temperature.
func (dev *Dev) ToggleHeater() error {
	return dev.toggleBits(bitHeaterEnabled)
}

// ToggleOTPReload flips the bit that disables reloading the OTP
// calibration settings before each measurement.
func (dev *Dev) ToggleOTPReload() error {
	return dev.toggleBits(bitDisableOTPReload)
}

// EndOfBattery reads the read-only alert bit the sensor sets once its
// supply voltage drops below 2.25V.
func (dev *Dev) EndOfBattery() (bool, error) {
	reg, err := dev.UserRegister()
	if err != nil {
		return false, err
	}
	return reg&bitEndOfBattery != 0, nil
}

// HeaterEnabled reads whether the diagnostic heater is on.
func (dev *Dev) HeaterEnabled() (bool, error) {
	reg, err := dev.UserRegister()
	if err != nil {
		return false, err
	}
	return reg&bitHeaterEnabled != 0, nil
}

// OTPReloadEnabled reads whether the sensor reloads its OTP calibration
// before each measurement. The register bit has inverted meaning: clear
// means enabled.
func (dev *Dev) OTPReloadEnabled() (bool, error) {
	reg, err := dev.UserRegister()
	if err != nil {
		return false, err
	}
	return reg&bitDisableOTPReload == 0, nil
}

// Temperature triggers a single temperature conversion and returns the
// reading in the requested unit.
func (dev *Dev) Temperature(mode MeasureMode, unit TemperatureUnit) (float64, error) {
	if unit != Celsius && unit != Fahrenheit {
		return 0, &UnsupportedUnitError{Unit: unit}
	}
	cmd := cmdMeasureTempHold
	if mode == NoHold {
		cmd = cmdMeasureTempNoHold
	}
	dev.mu.Lock()
	raw, err := dev.measure(cmd, dev.conversionDelay(mode, tempConversionTime))
	dev.mu.Unlock()
	if err != nil {
		return 0, err
	}
	t := rawToCelsius(raw)
	if unit == Fahrenheit {
		t = t*9.0/5.0 + 32
	}
	return t, nil
}

// Humidity triggers a single humidity conversion and returns percent
// relative humidity.
func (dev *Dev) Humidity(mode MeasureMode) (float64, error) {
	cmd := cmdMeasureHumidityHold
	if mode == NoHold {
		cmd = cmdMeasureHumidityNoHold
	}
	dev.mu.Lock()
	raw, err := dev.measure(cmd, dev.conversionDelay(mode, humidityConversionTime))
	dev.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return rawToHumidity(raw), nil
}

// Sense reads temperature and humidity from the device. Pressure is
// always 0 since the HTU21D does not measure pressure. Implements
// physic.SenseEnv.
func (dev *Dev) Sense(e *physic.Env) error {
	e.Pressure = 0
	t, err := dev.Temperature(Hold, Celsius)
	if err != nil {
		return err
	}
	rh, err := dev.Humidity(Hold)
	if err != nil {
		return err
	}
	e.Temperature = physic.Temperature(t*float64(physic.Kelvin)) + physic.ZeroCelsius
	e.Humidity = physic.RelativeHumidity(rh * float64(physic.PercentRH))
	return nil
}

// SenseContinuous continuously reads from the device and sends the
// readings to the returned channel. To terminate the read, call Halt().
func (dev *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < minSenseInterval {
		return nil, errors.New("htu21d: invalid interval. minimum 100ms")
	}
	if dev.shutdown != nil {
		return nil, errors.New("htu21d: SenseContinuous already running")
	}
	dev.shutdown = make(chan struct{})
	ch := make(chan physic.Env, 16)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-dev.shutdown:
				close(ch)
				dev.shutdown = nil
				return
			case <-ticker.C:
				e := physic.Env{}
				if err := dev.Sense(&e); err == nil {
					ch <- e
				}
			}
		}
	}()
	return ch, nil
}

// Precision returns the smallest reading step at the configured
// resolution. Implements physic.SenseEnv.
func (dev *Dev) Precision(e *physic.Env) {
	tStep := 175.72 / float64(uint32(1)<<tempBits[dev.opts.Resolution])
	hStep := 125.0 / float64(uint32(1)<<humidityBits[dev.opts.Resolution])
	e.Temperature = physic.Temperature(tStep * float64(physic.Kelvin))
	e.Humidity = physic.RelativeHumidity(hStep * float64(physic.PercentRH))
	e.Pressure = 0
}

// Halt interrupts a running SenseContinuous. Implements conn.Resource.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.shutdown != nil {
		close(dev.shutdown)
	}
	return nil
}

// String returns a string representation of the device.
func (dev *Dev) String() string {
	return fmt.Sprintf("htu21d: %s", dev.d)
}

func (dev *Dev) readUserRegister() (byte, error) {
	r := make([]byte, 1)
	if err := dev.d.Tx([]byte{cmdReadUserRegister}, r); err != nil {
		return 0, fmt.Errorf("htu21d: error reading user register %w", err)
	}
	return r[0], nil
}

func (dev *Dev) writeUserRegister(value byte) error {
	// Opcode and value go out as a single transaction.
	if err := dev.d.Tx([]byte{cmdWriteUserRegister, value}, nil); err != nil {
		return fmt.Errorf("htu21d: error writing user register %w", err)
	}
	return nil
}

// toggleBits is a read-modify-write of the user register. The mutex is
// held across both transactions so toggles are not interleaved within
// this process; bus-level arbitration is the transport's concern.
func (dev *Dev) toggleBits(bits byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	reg, err := dev.readUserRegister()
	if err != nil {
		return err
	}
	return dev.writeUserRegister(reg ^ bits)
}

func (dev *Dev) conversionDelay(mode MeasureMode, table map[Resolution]time.Duration) time.Duration {
	if mode == Hold {
		return holdSettleDelay
	}
	if dev.opts.MeasurementDelay > 0 {
		return dev.opts.MeasurementDelay
	}
	return table[dev.opts.Resolution]
}

// measure triggers a conversion, waits, and reads back the 3 byte result
// frame: MSB, LSB, checksum.
func (dev *Dev) measure(cmd byte, delay time.Duration) (uint16, error) {
	if err := dev.d.Tx([]byte{cmd}, nil); err != nil {
		return 0, fmt.Errorf("htu21d: error triggering measurement %w", err)
	}
	time.Sleep(delay)
	r := make([]byte, 3)
	if err := dev.d.Tx(nil, r); err != nil {
		return 0, fmt.Errorf("htu21d: error reading measurement %w", err)
	}
	return dev.processFrame(r)
}

// processFrame validates a result frame and returns the raw code with
// the status bits masked off.
func (dev *Dev) processFrame(frame []byte) (uint16, error) {
	if len(frame) != 3 {
		return 0, &MalformedFrameError{Length: len(frame)}
	}
	raw := uint16(frame[0])<<8 | uint16(frame[1])
	if dev.opts.ValidateData && !checkCRC(raw, frame[2]) {
		return 0, &DataIntegrityError{Raw: raw, Checksum: frame[2]}
	}
	return raw & rawStatusMask, nil
}

// Transfer functions from section 15 of the datasheet.
func rawToCelsius(raw uint16) float64 {
	return -46.85 + 175.72*float64(raw)/countDivisor
}

func rawToHumidity(raw uint16) float64 {
	return -6 + 125.0*float64(raw)/countDivisor
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
