/*
 * S370 - TOML-structured system configuration.
 *
 * Copyright 2024, Richard Cornwell
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

// Package tomlconfig loads the multi-CPU topology config that the
// teacher's line-oriented configparser has no syntax for: CPU count,
// architecture mode, and per-configuration memory size. Selected by
// main.go whenever the config file given on the command line ends in
// ".toml"; the line-oriented format remains available for everything
// configparser already covers (DEBUG directives and friends).
package tomlconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the structured equivalent of a configparser-style system
// file, covering the fields that drive core.NewEngine.
type Config struct {
	System struct {
		Architecture string `toml:"architecture"` // "s370", "esa390", or "esame"
		NumCPUs      int    `toml:"num_cpus"`
		MemoryMB     int    `toml:"memory_mb"`
		IPLDevice    int    `toml:"ipl_device"`
	} `toml:"system"`

	Trace struct {
		Enable    bool `toml:"enable"`
		TableSize int  `toml:"table_size_kb"`
	} `toml:"trace"`

	Debug struct {
		CPU []string `toml:"cpu"`
	} `toml:"debug"`
}

// Default returns a single-CPU S/370 configuration, matching this
// core's architected power-on defaults (spec.md section 9).
func Default() *Config {
	cfg := &Config{}
	cfg.System.Architecture = "s370"
	cfg.System.NumCPUs = 1
	cfg.System.MemoryMB = 16
	cfg.System.IPLDevice = 0x00c
	return cfg
}

// Load parses a TOML system-configuration file, applying Default's
// values to any field the file leaves unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.System.NumCPUs < 1 {
		return nil, fmt.Errorf("system.num_cpus must be at least 1")
	}
	return cfg, nil
}
