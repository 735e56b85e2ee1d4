// Package netconfig translates the engine's tunnel configuration into the
// NetworkManager VPN plugin configuration dictionaries.
package netconfig

import (
	"encoding/binary"
	"net/netip"

	"github.com/godbus/dbus/v5"
	"go4.org/netipx"

	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/engine"
)

// General configuration keys (NM_VPN_PLUGIN_CONFIG_*).
const (
	KeyTunnelDevice    = "tundev"
	KeyMTU             = "mtu"
	KeyExternalGateway = "gateway"
	KeyHasIP4          = "has-ip4"
	KeyHasIP6          = "has-ip6"
)

// IPv4 configuration keys (NM_VPN_PLUGIN_IP4_CONFIG_*).
const (
	KeyInternalGateway = "internal-gateway"
	KeyAddress         = "address"
	KeyPrefix          = "prefix"
	KeyDNS             = "dns"
)

// HostConfig is the host-side representation of a tunnel configuration.
// Zero values are omitted from the delivered dictionaries.
type HostConfig struct {
	TunnelDevice    string
	MTU             uint32
	ExternalGateway netip.Addr
	InternalGateway netip.Addr
	Address         netip.Addr
	Prefix          uint32
	DNS             []netip.Addr
	// HasIP4 is always true: every session provides IPv4 connectivity.
	HasIP4 bool
}

// Translate maps an engine configuration record to host form.
// Absent optional fields are omitted, never treated as errors.
func Translate(cfg engine.Config) HostConfig {
	host := HostConfig{
		TunnelDevice:    cfg.TunnelName,
		MTU:             cfg.MTU,
		ExternalGateway: addrFrom(cfg.RemoteAddress),
		InternalGateway: addrFrom(cfg.TunnelGateway),
		Address:         addrFrom(cfg.TunnelAddress),
		Prefix:          cfg.TunnelPrefix,
		HasIP4:          true,
	}
	if cfg.DNSAddress != 0 {
		host.DNS = []netip.Addr{addrFrom(cfg.DNSAddress)}
	}
	return host
}

// Network returns the tunnel network, or false when address or prefix is unset.
func (h HostConfig) Network() (netip.Prefix, bool) {
	if !h.Address.IsValid() || h.Prefix == 0 || h.Prefix > 32 {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(h.Address, int(h.Prefix)).Masked(), true
}

// Warnings lists suspicious but deliverable properties of the configuration.
func (h HostConfig) Warnings() []string {
	var warnings []string
	if h.Prefix > 32 {
		warnings = append(warnings, "prefix is longer than 32 bits")
	}
	network, ok := h.Network()
	if !ok || network.Bits() >= 31 {
		return warnings
	}
	r := netipx.RangeOfPrefix(network)
	if h.Address == r.From() {
		warnings = append(warnings, "tunnel address is the network address of "+network.String())
	}
	if h.Address == r.To() {
		warnings = append(warnings, "tunnel address is the broadcast address of "+network.String())
	}
	if h.InternalGateway.IsValid() && !network.Contains(h.InternalGateway) {
		warnings = append(warnings, "internal gateway is outside "+network.String())
	}
	return warnings
}

// General returns the general plugin configuration dictionary.
func (h HostConfig) General() map[string]dbus.Variant {
	general := map[string]dbus.Variant{
		KeyHasIP4: dbus.MakeVariant(h.HasIP4),
	}
	if h.TunnelDevice != "" {
		general[KeyTunnelDevice] = dbus.MakeVariant(h.TunnelDevice)
	}
	if h.MTU != 0 {
		general[KeyMTU] = dbus.MakeVariant(h.MTU)
	}
	if h.ExternalGateway.IsValid() {
		general[KeyExternalGateway] = dbus.MakeVariant(wireAddr(h.ExternalGateway))
	}
	return general
}

// IP4 returns the IPv4 configuration dictionary.
func (h HostConfig) IP4() map[string]dbus.Variant {
	ip4 := make(map[string]dbus.Variant)
	if h.InternalGateway.IsValid() {
		ip4[KeyInternalGateway] = dbus.MakeVariant(wireAddr(h.InternalGateway))
	}
	if h.Address.IsValid() {
		ip4[KeyAddress] = dbus.MakeVariant(wireAddr(h.Address))
	}
	if h.Prefix != 0 {
		ip4[KeyPrefix] = dbus.MakeVariant(h.Prefix)
	}
	if len(h.DNS) > 0 {
		dns := make([]uint32, 0, len(h.DNS))
		for _, addr := range h.DNS {
			dns = append(dns, wireAddr(addr))
		}
		ip4[KeyDNS] = dbus.MakeVariant(dns)
	}
	return ip4
}

// LogSummary writes the configuration to the debug log.
func (h HostConfig) LogSummary(session string) {
	common.LogDebug("Config %s: device=%q mtu=%d gateway=%s address=%s/%d internal-gateway=%s dns=%v",
		session, h.TunnelDevice, h.MTU, h.ExternalGateway, h.Address, h.Prefix, h.InternalGateway, h.DNS)
	for _, w := range h.Warnings() {
		common.LogWarn("Config %s: %s", session, w)
	}
}

// addrFrom converts a host-order IPv4 integer; zero yields the invalid Addr.
func addrFrom(v uint32) netip.Addr {
	if v == 0 {
		return netip.Addr{}
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// wireAddr returns the uint32 NetworkManager expects: the address bytes in
// network order, read as a native integer (g_htonl).
func wireAddr(addr netip.Addr) uint32 {
	b := addr.As4()
	return HostToNetwork(binary.BigEndian.Uint32(b[:]))
}

// HostToNetwork converts a host-order IPv4 integer to network order.
func HostToNetwork(v uint32) uint32 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return binary.NativeEndian.Uint32(b[:])
}
