package integration

import (
	"context"
	"testing"

	"github.com/joshuafuller/udpurl/session"
)

// TestMulticast_RoundTrip sends to a group and receives the looped-back
// datagram on a reader that joined it.
func TestMulticast_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	group, port := freshGroup(t)
	reader := openReader(t, groupURL(group, port, ""))
	if !reader.IsMulticast() {
		t.Fatalf("IsMulticast() = false for %s", group)
	}
	if reader.LocalPort() != port {
		t.Errorf("LocalPort() = %d, want group port %d", reader.LocalPort(), port)
	}

	writer, err := session.Open(context.Background(), groupURL(group, port, "ttl=1"), session.ModeWrite)
	if err != nil {
		t.Fatalf("Open(writer) error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	stop := make(chan struct{})
	defer close(stop)
	errs := pump(writer, []byte("to the group"), stop)

	if got := receiveOrSkip(t, reader, errs); got != "to the group" {
		t.Errorf("received %q, want %q", got, "to the group")
	}
}

// TestMulticast_ReadersSharePort opens two readers on the same group and port.
// Reuse is on by default for multicast, so both bind and both receive.
func TestMulticast_ReadersSharePort(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	group, port := freshGroup(t)
	first := openReader(t, groupURL(group, port, ""))
	second := openReader(t, groupURL(group, port, ""))

	writer, err := session.Open(context.Background(), groupURL(group, port, "ttl=1"), session.ModeWrite)
	if err != nil {
		t.Fatalf("Open(writer) error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	stop := make(chan struct{})
	defer close(stop)
	errs := pump(writer, []byte("shared"), stop)

	for i, r := range []*session.Session{first, second} {
		if got := receiveOrSkip(t, r, errs); got != "shared" {
			t.Errorf("reader %d received %q, want %q", i+1, got, "shared")
		}
	}
}

// TestMulticast_ExplicitReuseOffConflicts checks that reuse=0 on a second
// reader of the same port is refused by the OS.
func TestMulticast_ExplicitReuseOffConflicts(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	group, port := freshGroup(t)
	_ = openReader(t, groupURL(group, port, "reuse=0"))

	s, err := session.Open(context.Background(), groupURL(group, port, "reuse=0"), session.ModeRead)
	if err == nil {
		_ = s.Close()
		t.Skip("OS allowed a second bind without SO_REUSEADDR")
	}
	t.Logf("second reader refused as expected: %v", err)
}
