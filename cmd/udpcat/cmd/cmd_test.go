package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joshuafuller/udpurl/cmd/udpcat/cmd"
	"github.com/joshuafuller/udpurl/session"
)

// resetFlags restores every flag to its default so tests do not leak flag
// values into each other through the shared command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func executeCommand(stdin string, args ...string) (string, error) {
	root := cmd.RootCmd()
	resetFlags(root)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func openReceiver(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), "udp://127.0.0.1:0", session.ModeRead)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func readOne(t *testing.T, s *session.Session) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	buf := make([]byte, s.MaxPacketSize())
	n, err := s.ReadContext(ctx, buf)
	if err != nil {
		t.Fatalf("ReadContext() error = %v", err)
	}
	return string(buf[:n])
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand("", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "udpcat version") {
		t.Errorf("expected output to contain 'udpcat version', got: %s", out)
	}
}

func TestInspectCommand(t *testing.T) {
	out, err := executeCommand("", "inspect", "udp://239.1.1.1:5004?ttl=32&sources=10.0.0.5,10.0.0.6", "-o", "json")
	if err != nil {
		t.Fatalf("inspect command failed: %v", err)
	}

	var report map[string]any
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("inspect output is not JSON: %v\n%s", err, out)
	}
	if report["ttl"] != float64(32) {
		t.Errorf("ttl = %v, want 32", report["ttl"])
	}
	if report["filter"] != "include" || report["sources"] != "10.0.0.5,10.0.0.6" {
		t.Errorf("filter = %v, sources = %v", report["filter"], report["sources"])
	}
	if report["buffer_size"] != float64(65536) {
		t.Errorf("buffer_size = %v, want read default 65536", report["buffer_size"])
	}
}

func TestInspectCommand_WriteDefaults(t *testing.T) {
	out, err := executeCommand("", "inspect", "udp://127.0.0.1:9", "--mode", "write", "-o", "yaml")
	if err != nil {
		t.Fatalf("inspect command failed: %v", err)
	}
	if !strings.Contains(out, "buffer_size: 32768") {
		t.Errorf("expected write default buffer size, got: %s", out)
	}
}

func TestInspectCommand_Open(t *testing.T) {
	out, err := executeCommand("", "inspect", "udp://127.0.0.1:0", "--open")
	if err != nil {
		t.Fatalf("inspect --open failed: %v", err)
	}
	if !strings.Contains(out, "State:") || !strings.Contains(out, "unconnected") {
		t.Errorf("expected session state in output, got: %s", out)
	}
}

func TestInspectCommand_Invalid(t *testing.T) {
	tests := [][]string{
		{"inspect", "udp://127.0.0.1:9?ttl=300"},
		{"inspect", "udp://127.0.0.1:9", "--mode", "sideways"},
		{"inspect"},
	}
	for _, args := range tests {
		if _, err := executeCommand("", args...); err == nil {
			t.Errorf("%v: expected error, got nil", args)
		}
	}
}

func TestSendCommand(t *testing.T) {
	receiver := openReceiver(t)
	target := fmt.Sprintf("udp://127.0.0.1:%d", receiver.LocalPort())

	out, err := executeCommand("", "send", target, "hello", "there", "-o", "json")
	if err != nil {
		t.Fatalf("send command failed: %v", err)
	}
	if got := readOne(t, receiver); got != "hello there" {
		t.Errorf("received %q, want %q", got, "hello there")
	}
	if !strings.Contains(out, `"datagrams": 1`) {
		t.Errorf("expected one datagram in report, got: %s", out)
	}
}

func TestSendCommand_Stdin(t *testing.T) {
	receiver := openReceiver(t)
	target := fmt.Sprintf("udp://127.0.0.1:%d", receiver.LocalPort())

	if _, err := executeCommand("first\nsecond\n", "send", target); err != nil {
		t.Fatalf("send command failed: %v", err)
	}
	for _, want := range []string{"first", "second"} {
		if got := readOne(t, receiver); got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	}
}

func TestRecvCommand(t *testing.T) {
	first := openReceiver(t)
	port := first.LocalPort()
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := executeCommand("", "recv", fmt.Sprintf("udp://127.0.0.1:%d", port), "--timeout", "5s", "-o", "json")
		done <- result{out, err}
	}()

	sender, err := session.Open(context.Background(), fmt.Sprintf("udp://127.0.0.1:%d", port), session.ModeWrite)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = sender.Close() }()

	// The receiver binds asynchronously; resend until it reports.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-done:
			if r.err != nil {
				t.Fatalf("recv command failed: %v", r.err)
			}
			if !strings.Contains(r.out, `"payload": "ping"`) {
				t.Errorf("expected payload in output, got: %s", r.out)
			}
			return
		case <-ticker.C:
			if _, err := sender.Write([]byte("ping")); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
		case <-deadline:
			t.Fatal("recv command did not finish")
		}
	}
}

func TestRecvCommand_Timeout(t *testing.T) {
	_, err := executeCommand("", "recv", "udp://127.0.0.1:0", "--timeout", "50ms")
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to receive") {
		t.Errorf("unexpected error: %v", err)
	}
}
