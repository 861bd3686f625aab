//go:build windows

package socket

import (
	"syscall"
	"testing"
)

// TestSetReuseAddr_Windows verifies SO_REUSEADDR can be applied on Windows.
// Windows has SO_REUSEADDR only (no SO_REUSEPORT).
func TestSetReuseAddr_Windows(t *testing.T) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_DGRAM, syscall.IPPROTO_UDP)
	if err != nil {
		t.Fatalf("Failed to create socket: %v", err)
	}
	defer func() { _ = syscall.Closesocket(fd) }()

	if err := setReuseAddr(uintptr(fd)); err != nil {
		t.Fatalf("setReuseAddr() failed: %v", err)
	}
}
