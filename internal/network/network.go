// Package network provides the link layer the node runs over.
package network

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/sweeney/smarthome-node/internal/connectivity"
)

// DefaultInterface is the Wi-Fi interface on a Raspberry Pi.
const DefaultInterface = "wlan0"

// InterfaceLink reports the state of a host network interface. Joining the
// network itself is left to the OS (wpa_supplicant / NetworkManager); Connect
// only checks that the interface exists and the configured SSID is the one
// the OS reports, when it reports one.
type InterfaceLink struct {
	name      string
	byName    func(string) (*net.Interface, error)
	addrs     func(*net.Interface) ([]net.Addr, error)
	currentID func() string
}

// NewInterfaceLink creates a link watching the named interface.
func NewInterfaceLink(name string) *InterfaceLink {
	return &InterfaceLink{
		name:      name,
		byName:    net.InterfaceByName,
		addrs:     (*net.Interface).Addrs,
		currentID: func() string { return os.Getenv(envNetworkWifiSSID) },
	}
}

// Connect verifies the interface is present.
func (l *InterfaceLink) Connect(ctx context.Context, creds connectivity.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := l.name
	if creds.Interface != "" {
		name = creds.Interface
		l.name = name
	}
	if _, err := l.byName(name); err != nil {
		return fmt.Errorf("interface %s: %w", name, err)
	}
	if creds.SSID != "" {
		if got := l.currentID(); got != "" && got != creds.SSID {
			return fmt.Errorf("interface %s joined %q, want %q", name, got, creds.SSID)
		}
	}
	return nil
}

// Up reports whether the interface is up, running, and holds a
// non-loopback unicast address.
func (l *InterfaceLink) Up() (bool, error) {
	iface, err := l.byName(l.name)
	if err != nil {
		return false, fmt.Errorf("interface %s: %w", l.name, err)
	}
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagRunning == 0 {
		return false, nil
	}
	addrs, err := l.addrs(iface)
	if err != nil {
		return false, fmt.Errorf("interface %s addrs: %w", l.name, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ipnet.IP.IsGlobalUnicast() {
			return true, nil
		}
	}
	return false, nil
}

// Close is a no-op; the OS owns the interface.
func (l *InterfaceLink) Close() error { return nil }

// Name returns the watched interface name.
func (l *InterfaceLink) Name() string { return l.name }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// Info describes the host network as reported by pi-helper.
type Info struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// ReadInfo returns the pi-helper network info, or nil if pi-helper has not
// populated the environment.
func ReadInfo() *Info {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &Info{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       strings.TrimSpace(os.Getenv(envNetworkWifiSSID)),
	}
}
