/*
   Operator console: a line-oriented protocol over a Unix domain socket
   that lets cmd/s370ctl inject SIGP orders and dump CPU state against a
   running Engine, without reaching into DAT/ASN internals (spec.md's
   console/operator-panel boundary — kept outside the core, talking only
   to cpu.Snapshot/cpu.ConsoleSignalProcessor).

   Copyright (c) 2026, S390x-emu contributors
*/

package core

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	hex "github.com/s390x-emu/core/util/hex"
)

// ServeConsole listens on a Unix domain socket at sockPath and serves
// console commands until the Engine is stopped. Removes any stale
// socket file left by a prior crashed run before binding, the way the
// teacher's telnet listener re-binds its port on restart.
func (e *Engine) ServeConsole(sockPath string) error {
	_ = os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("console listen: %w", err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ln.Close()
		go func() {
			<-e.done
			ln.Close()
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go e.handleConsoleConn(conn)
		}
	}()
	return nil
}

func (e *Engine) handleConsoleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := e.runConsoleCommand(line)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			return
		}
	}
}

// runConsoleCommand handles one line of the console protocol:
//
//	SIGP <target-cpu> <order> [parm]   issue a SIGP order
//	DUMP <cpu>                         print one CPU's architected state
//	LIST                                list configured CPU ordinals
func (e *Engine) runConsoleCommand(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERR empty command"
	}

	switch strings.ToUpper(fields[0]) {
	case "LIST":
		ids := make([]string, 0, len(e.Sys.CPUs))
		for _, c := range e.Sys.CPUs {
			ids = append(ids, strconv.Itoa(c.CPUID))
		}
		return "OK cpus=" + strings.Join(ids, ",")

	case "DUMP":
		if len(fields) < 2 {
			return "ERR DUMP requires a CPU ordinal"
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return "ERR invalid CPU ordinal: " + fields[1]
		}
		for _, c := range e.Sys.CPUs {
			if c.CPUID == id {
				snap := c.Snapshot()
				var regs, cregs strings.Builder
				hex.FormatWord(&regs, snap.Regs[:])
				hex.FormatWord(&cregs, snap.CRegs[:])
				return fmt.Sprintf("OK pc=%08x cc=%d online=%v running=%v prefix=%08x\nGR %sCR %s",
					snap.PC, snap.CC, snap.Online, snap.Running, snap.Prefix,
					strings.TrimSpace(regs.String()), strings.TrimSpace(cregs.String()))
			}
		}
		return "ERR no such CPU: " + fields[1]

	case "SIGP":
		if len(fields) < 3 {
			return "ERR SIGP requires <target-cpu> <order>"
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return "ERR invalid CPU ordinal: " + fields[1]
		}
		order, err := strconv.ParseUint(fields[2], 0, 8)
		if err != nil {
			return "ERR invalid order: " + fields[2]
		}
		var parm uint64
		if len(fields) > 3 {
			parm, err = strconv.ParseUint(fields[3], 0, 32)
			if err != nil {
				return "ERR invalid parameter: " + fields[3]
			}
		}
		status, ok := e.Sys.ConsoleSignalProcessor(id, uint8(order), uint32(parm))
		slog.Info("console SIGP", "target", id, "order", order, "ok", ok, "status", status)
		return fmt.Sprintf("OK status=%08x accepted=%v", status, ok)

	default:
		return "ERR unknown command: " + fields[0]
	}
}
