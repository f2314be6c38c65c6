package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"unicode"

	"github.com/hashicorp/mdns"
)

const (
	serviceType   = "_spotify-connect._tcp"
	serviceDomain = "local."
)

// Tells controllers where the zeroconf endpoint lives on the advertised port.
var serviceTXT = []string{"VERSION=1.0", "CPath=" + zeroconfPath, "Stack=SP"}

// The service record set of one device: PTR, SRV, TXT and the host's addresses.
func newService(deviceName string, port int, ips []net.IP) (*mdns.MDNSService, error) {
	instance := strings.ReplaceAll(deviceName, ".", "-")
	return mdns.NewMDNSService(instance, serviceType, serviceDomain, mdnsHostName(deviceName)+".", port, ips, serviceTXT)
}

// Advertise the zeroconf endpoint on port until ctx is done.
func runResponder(ctx context.Context, logger *slog.Logger, deviceName string, port int) error {
	service, err := newService(deviceName, port, advertisedIPs())
	if err != nil {
		logger.Error("invalid mdns service", "err", err)
		return fmt.Errorf("mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		logger.Error("could not start mdns responder", "err", err)
		return fmt.Errorf("mdns server: %w", err)
	}
	logger.Info("mdns responder started",
		"instance", service.Instance,
		"service", serviceType,
		"host", service.HostName,
		"port", port,
	)

	<-ctx.Done()
	if err := server.Shutdown(); err != nil {
		logger.Warn("error while closing mdns responder", "err", err)
	}
	return nil
}

// Addresses of the up, non-loopback interfaces. Falls back to loopback, so the
// service never depends on the host name resolving.
func advertisedIPs() []net.IP {
	var ips []net.IP
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			ips = append(ips, ipNet.IP)
		}
	}
	if len(ips) == 0 {
		ips = []net.IP{net.IPv4(127, 0, 0, 1)}
	}
	return ips
}

// Turn a device name into a resolvable .local name,
// e.g. "connectd@Living Room" becomes "connectd-living-room.local".
func mdnsHostName(deviceName string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(deviceName) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(sb.String(), "-")
	if name == "" {
		name = "connectd"
	}
	return name + ".local"
}
