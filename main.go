// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dmxsender - DMX512 transmitter simulator and command protocol client

package main

import (
	"os"

	"github.com/Thermoquad/dmxsender/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
