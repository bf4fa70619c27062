package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// ============================================================================
// tacho-ctl - line protocol client
// ============================================================================
// Talks to the tachometer over its Unix socket or directly over a serial port.
//
// Usage:
//   tacho-ctl id
//   tacho-ctl unit 2
//   tacho-ctl rate
//   tacho-ctl send "u1"
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/tachometer.sock)
//   -serial DEV     Serial device; overrides -socket
//   -baud N         Serial baud rate (default: 9600)
//   -timeout D      Response timeout (default: 2s)
// ============================================================================

func main() {
	var (
		socketPath = flag.String("socket", "/tmp/tachometer.sock", "Unix domain socket path")
		serialDev  = flag.String("serial", "", "Serial device (overrides -socket)")
		baud       = flag.Int("baud", 9600, "Serial baud rate")
		timeout    = flag.Duration("timeout", 2*time.Second, "Response timeout")
	)
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	line, expectReply, err := commandLine(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	var conn io.ReadWriteCloser
	if *serialDev != "" {
		conn, err = openSerial(*serialDev, *baud, *timeout)
	} else {
		conn, err = openSocket(*socketPath, *timeout)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	resp, err := exchange(conn, line, expectReply)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if expectReply {
		fmt.Println(resp)
	}
}

// commandLine maps CLI arguments to one protocol line.
func commandLine(args []string) (line string, expectReply bool, err error) {
	switch args[0] {
	case "id", "identify":
		return "id?", true, nil

	case "unit", "u":
		if len(args) < 2 {
			return "", false, fmt.Errorf("unit requires an index (0 rpm, 1 rev/s, 2 rad/s)")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", false, fmt.Errorf("invalid unit index: %v", err)
		}
		return "u" + strconv.Itoa(n), false, nil

	case "rate", "read", "?":
		return "?", true, nil

	case "send", "raw":
		if len(args) < 2 {
			return "", false, fmt.Errorf("send requires a line")
		}
		raw := strings.Join(args[1:], " ")
		return raw, !isUnitLine(raw), nil

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	}
	return "", false, fmt.Errorf("unknown command: %s", args[0])
}

// isUnitLine mirrors the daemon's rule: "u" followed by an optionally signed integer
// is a silent unit selection.
func isUnitLine(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "u") {
		return false
	}
	digits := strings.TrimLeft(line[1:], "+-")
	if len(line[1:])-len(digits) > 1 || digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func exchange(rw io.ReadWriter, line string, expectReply bool) (string, error) {
	if _, err := fmt.Fprintf(rw, "%s\n", line); err != nil {
		return "", fmt.Errorf("send line: %w", err)
	}
	if !expectReply {
		return "", nil
	}
	resp, err := bufio.NewReader(rw).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return strings.TrimRight(resp, "\r\n"), nil
}

type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func openSocket(path string, timeout time.Duration) (io.ReadWriteCloser, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", path, err)
	}
	return deadlineConn{Conn: conn, timeout: timeout}, nil
}

// serialPort turns a read timeout (0 bytes, nil error) into an error.
type serialPort struct {
	serial.Port
}

func (p serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil {
		return 0, fmt.Errorf("timeout waiting for response")
	}
	return n, err
}

func openSerial(dev string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	port, err := serial.Open(dev, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return serialPort{Port: port}, nil
}

func printUsage() {
	fmt.Println("tacho-ctl - tachometer line protocol client")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  tacho-ctl [OPTIONS] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  id              Print the identity string")
	fmt.Println("  unit N          Select unit (0 rpm, 1 rev/s, 2 rad/s); no output")
	fmt.Println("  rate            Print the current rate, e.g. \"2400.0 rpm\"")
	fmt.Println("  send LINE       Send a raw protocol line")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -socket PATH    Unix domain socket path (default: /tmp/tachometer.sock)")
	fmt.Println("  -serial DEV     Serial device; overrides -socket")
	fmt.Println("  -baud N         Serial baud rate (default: 9600)")
	fmt.Println("  -timeout D      Response timeout (default: 2s)")
	fmt.Println()
}
