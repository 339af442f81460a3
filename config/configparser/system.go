/*
 * S370 - System topology directives (CPU count, architecture, memory).
 *
 * Copyright 2026, S390x-emu contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package configparser

import (
	"errors"
	"strconv"
	"strings"
)

// SystemConfig holds the engine topology this core needs to boot:
// CPU count, architecture mode, and memory size, as set by the
// line-oriented directives registered below. config/tomlconfig's loader
// fills its own Config type with the same three fields; main.go reads
// whichever of the two loaded the file.
type SystemConfig struct {
	Architecture string // "s370", "esa390", or "esame"
	NumCPUs      int
	MemoryMB     int
}

// System holds the configuration accumulated from CPU/MEMORY/ARCHITECTURE
// directives as LoadConfigFile runs. Callers read it after LoadConfigFile
// returns; defaults match the teacher's single-CPU S/370 power-on state.
var System = SystemConfig{Architecture: "s370", NumCPUs: 1, MemoryMB: 16}

func init() {
	RegisterOption("CPUS", setNumCPUs)
	RegisterOption("ARCHITECTURE", setArchitecture)
	RegisterOption("MEMORY", setMemoryMB)
}

func setNumCPUs(_ uint16, value string, _ []Option) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return errors.New("CPUS requires a positive integer: " + value)
	}
	System.NumCPUs = n
	return nil
}

func setArchitecture(_ uint16, value string, _ []Option) error {
	switch strings.ToLower(value) {
	case "s370", "esa390", "esame":
		System.Architecture = strings.ToLower(value)
	default:
		return errors.New("ARCHITECTURE must be one of s370, esa390, esame: " + value)
	}
	return nil
}

func setMemoryMB(_ uint16, value string, _ []Option) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return errors.New("MEMORY requires a positive integer (megabytes): " + value)
	}
	System.MemoryMB = n
	return nil
}
