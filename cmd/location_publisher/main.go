// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}
