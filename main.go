/*
 * S370 - Main process.
 *
 * Copyright 2024, Richard Cornwell
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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	config "github.com/s390x-emu/core/config/configparser"
	toml "github.com/s390x-emu/core/config/tomlconfig"
	"github.com/s390x-emu/core/emu/cpu"
	core "github.com/s390x-emu/core/emu/core"
	logger "github.com/s390x-emu/core/util/logger"

	_ "github.com/s390x-emu/core/config/debugconfig"
)

var Logger *slog.Logger

func archFromName(name string) cpu.Arch {
	switch strings.ToLower(name) {
	case "esame":
		return cpu.ArchESAME
	case "esa390":
		return cpu.ArchESA390
	default:
		return cpu.ArchS370
	}
}

// loadSystemConfig loads path, dispatching on its extension: ".toml"
// goes through config/tomlconfig's structured loader, anything else
// through the teacher's line-oriented configparser. Both populate
// equivalent fields; the caller only needs architecture/NumCPUs/MemoryMB.
func loadSystemConfig(path string) (arch cpu.Arch, numCPUs int, memoryMB int, err error) {
	if strings.HasSuffix(strings.ToLower(path), ".toml") {
		cfg, loadErr := toml.Load(path)
		if loadErr != nil {
			return 0, 0, 0, loadErr
		}
		for _, name := range cfg.Debug.CPU {
			if dbgErr := cpu.Debug(strings.ToUpper(name)); dbgErr != nil {
				Logger.Warn(dbgErr.Error())
			}
		}
		return archFromName(cfg.System.Architecture), cfg.System.NumCPUs, cfg.System.MemoryMB, nil
	}

	if loadErr := config.LoadConfigFile(path); loadErr != nil {
		return 0, 0, 0, loadErr
	}
	return archFromName(config.System.Architecture), config.System.NumCPUs, config.System.MemoryMB, nil
}

func main() {
	optConfig := getopt.StringLong("config", 'c', "S370.cfg", "Configuration file")
	optCPUs := getopt.IntLong("cpus", 'n', 0, "Number of CPUs (overrides config file)")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optTrace := getopt.BoolLong("trace", 't', "Enable instruction trace debug output")
	optConsole := getopt.StringLong("console", 0, "", "Unix socket path for the s370ctl operator console")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if optLogFile != nil && *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, new(bool)))
	slog.SetDefault(Logger)

	Logger.Info("S370 core started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		Logger.Error("configuration file can't be found", "path", *optConfig)
		os.Exit(1)
	}

	arch, numCPUs, memoryMB, err := loadSystemConfig(*optConfig)
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}

	if optCPUs != nil && *optCPUs > 0 {
		numCPUs = *optCPUs
	}
	if *optTrace {
		if err := cpu.Debug("INSTR"); err != nil {
			Logger.Warn(err.Error())
		}
	}

	Logger.Info("booting configuration", "architecture", arch, "cpus", numCPUs, "memory_mb", memoryMB)

	engine := core.NewEngine(uint32(memoryMB)*1024*1024, numCPUs, arch)
	engine.Start()

	if optConsole != nil && *optConsole != "" {
		if err := engine.ServeConsole(*optConsole); err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
		Logger.Info("operator console listening", "socket", *optConsole)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	Logger.Info("shutting down engine")
	engine.Stop()
	Logger.Info("engine stopped")
}
