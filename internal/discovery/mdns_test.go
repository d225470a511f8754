// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager setup and service entry conversion
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Player", Port: 8928})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.ServiceType() != PlayerService {
		t.Errorf("expected %s, got %s", PlayerService, mgr.ServiceType())
	}

	server := NewManager(Config{ServiceName: "Test Server", Port: 8928, ServerMode: true})
	if server.ServiceType() != ServerService {
		t.Errorf("expected %s, got %s", ServerService, server.ServiceType())
	}
}

func TestServerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "den._playsync-server._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8928,
		InfoFields: []string{"path=/custom"},
	}

	server := serverFromEntry(entry)
	if server == nil {
		t.Fatal("expected server info")
	}
	if server.Addr() != "192.168.1.20:8928" {
		t.Errorf("expected 192.168.1.20:8928, got %s", server.Addr())
	}
	if server.Path != "/custom" {
		t.Errorf("expected path /custom, got %s", server.Path)
	}
}

func TestServerFromEntryWithoutIPv4(t *testing.T) {
	if serverFromEntry(&mdns.ServiceEntry{Name: "v6-only", Port: 1}) != nil {
		t.Error("expected nil for entry without IPv4 address")
	}
	if serverFromEntry(nil) != nil {
		t.Error("expected nil for nil entry")
	}
}
