// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// htu21d-demo periodically reads an HTU21D sensor and writes colored
// readings to the terminal. The color tracks the value: blue for cold
// and dry, red for hot and humid.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"time"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/htu21d"
)

var (
	busName  = flag.String("bus", "", "i2c bus to use, empty for the first available")
	interval = flag.Duration("interval", time.Second, "time between readings")
	noHold   = flag.Bool("nohold", false, "use no-hold measurements instead of clock stretching")
	noCRC    = flag.Bool("nocrc", false, "skip checksum verification of result frames")
)

// scaleColor maps a value inside [low, high] onto a blue..red gradient.
func scaleColor(val, low, high float64) color.NRGBA {
	frac := (val - low) / (high - low)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return color.NRGBA{R: byte(255 * frac), B: byte(255 * (1 - frac)), A: 255}
}

func main() {
	flag.Parse()

	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	bus, err := i2creg.Open(*busName)
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	opts := htu21d.DefaultOpts
	opts.ValidateData = !*noCRC
	dev, err := htu21d.New(bus, htu21d.DefaultAddress, &opts)
	if err != nil {
		log.Fatal(err)
	}

	if ok, err := dev.SelfTest(); err != nil {
		log.Fatal(err)
	} else if !ok {
		log.Println("warning: device did not report power-on defaults")
	}
	if heater, err := dev.HeaterEnabled(); err == nil && heater {
		log.Println("warning: diagnostic heater is on, readings will drift")
	}

	mode := htu21d.Hold
	if *noHold {
		mode = htu21d.NoHold
	}

	out := colorable.NewColorableStdout()
	for {
		tc, err := dev.Temperature(mode, htu21d.Celsius)
		if err != nil {
			log.Println(err)
			time.Sleep(*interval)
			continue
		}
		rh, err := dev.Humidity(mode)
		if err != nil {
			log.Println(err)
			time.Sleep(*interval)
			continue
		}
		tf := tc*9.0/5.0 + 32
		fmt.Fprintf(out, "%s %6.2f °C %7.2f °F\033[0m  %s %6.2f %%RH\033[0m\n",
			ansi256.Default.Block(scaleColor(tc, -10, 40)), tc, tf,
			ansi256.Default.Block(scaleColor(rh, 0, 100)), rh)
		time.Sleep(*interval)
	}
}
