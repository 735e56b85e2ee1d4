// Package cli provides the operator command line client.
package cli

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/godbus/dbus/v5"

	"github.com/yllada/seaside-nm/netconfig"
	"github.com/yllada/seaside-nm/vpn"
)

// terminalHost prints controller callbacks instead of sending them to
// NetworkManager. With send set, callbacks go to the session monitor.
type terminalHost struct {
	out  io.Writer
	st   styles
	send func(tea.Msg)

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

func newTerminalHost(out io.Writer, st styles) *terminalHost {
	return &terminalHost{out: out, st: st, done: make(chan struct{})}
}

// Done is closed when a running session terminates.
func (h *terminalHost) Done() <-chan struct{} {
	return h.done
}

func (h *terminalHost) StateChanged(state vpn.State) {
	if h.send != nil {
		h.send(stateMsg{state: state})
	} else {
		h.printf("%s %s\n", h.st.dim.Render("state:"), state)
	}
	if state == vpn.StateTerminated {
		h.once.Do(func() { close(h.done) })
	}
}

func (h *terminalHost) SetConfig(general map[string]dbus.Variant) error {
	h.printDict("General configuration", general)
	return nil
}

func (h *terminalHost) SetIP4Config(ip4 map[string]dbus.Variant) error {
	h.printDict("IPv4 configuration", ip4)
	return nil
}

func (h *terminalHost) Failure(reason vpn.FailureReason) error {
	if h.send != nil {
		h.send(failureMsg{reason: reason})
		return nil
	}
	h.printf("%s reason %d\n", h.st.fail.Render("✗ failure:"), reason)
	return nil
}

func (h *terminalHost) printDict(title string, dict map[string]dbus.Variant) {
	section := dictSection(title, dict)
	if h.send != nil {
		h.send(configMsg{section: section})
		return
	}

	var b strings.Builder
	b.WriteString(h.st.title.Render(title) + "\n")
	for _, line := range section.lines {
		b.WriteString("  " + line + "\n")
	}
	h.printf("%s", b.String())
}

// dictSection renders a configuration dictionary as sorted key: value lines.
func dictSection(title string, dict map[string]dbus.Variant) configSection {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	section := configSection{title: title}
	for _, k := range keys {
		section.lines = append(section.lines, k+": "+formatValue(k, dict[k]))
	}
	return section
}

func (h *terminalHost) printf(format string, args ...interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.out, format, args...)
}

// formatValue renders address entries, which travel in network order, as
// dotted quads.
func formatValue(key string, v dbus.Variant) string {
	switch key {
	case netconfig.KeyExternalGateway, netconfig.KeyInternalGateway, netconfig.KeyAddress:
		if n, ok := v.Value().(uint32); ok {
			return wireToAddr(n).String()
		}
	case netconfig.KeyDNS:
		if list, ok := v.Value().([]uint32); ok {
			addrs := make([]string, 0, len(list))
			for _, n := range list {
				addrs = append(addrs, wireToAddr(n).String())
			}
			return strings.Join(addrs, ", ")
		}
	}
	return fmt.Sprint(v.Value())
}

func wireToAddr(n uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], netconfig.HostToNetwork(n))
	return netip.AddrFrom4(b)
}
