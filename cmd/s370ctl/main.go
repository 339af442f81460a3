/*
 * s370ctl - Operator console client for a running S370 core engine.
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

package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func dialConsole(socketPath string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, timeout)
}

func sendCommand(socketPath, line string) (string, error) {
	conn, err := dialConsole(socketPath, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, line); err != nil {
		return "", err
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func main() {
	var socketPath string

	rootCmd := &cobra.Command{
		Use:   "s370ctl",
		Short: "Operator console for a running S/370 core engine",
	}
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/tmp/s370.sock",
		"Unix socket path of the running engine's operator console")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured CPU ordinals",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := sendCommand(socketPath, "LIST")
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [cpu]",
		Short: "Dump one CPU's architected state (PC, CC, online/running, prefix)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := sendCommand(socketPath, "DUMP "+args[0])
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	sigpCmd := &cobra.Command{
		Use:   "sigp [cpu] [order] [parm]",
		Short: "Issue a SIGP order against a target CPU (order: sense=1, start=4, stop=5, restart=6, reset=12, set-prefix=13)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := "SIGP " + strings.Join(args, " ")
			reply, err := sendCommand(socketPath, line)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	rootCmd.AddCommand(listCmd, dumpCmd, sigpCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
