package v1

import (
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// clientIP returns the visitor address stored with an event.
//
// fiber's c.IP() yields the raw proxy header when the server has a
// ProxyHeader configured, and the socket peer otherwise. With no trusted
// proxies the first valid address in that value wins. With trusted proxies
// the header is only read when the peer is one of them, and the right-most
// hop that is not a trusted proxy is the client. A chain made only of
// trusted proxies falls back to its left-most hop.
func clientIP(c *fiber.Ctx, trusted []netip.Prefix) string {
	peer := c.Context().RemoteIP().String()
	if len(trusted) > 0 && !inRanges(trusted, peer) {
		return peer
	}

	hops := strings.Split(c.IP(), ",")
	if len(trusted) == 0 {
		for _, hop := range hops {
			if addr, ok := parseHop(hop); ok {
				return addr.String()
			}
		}
		return peer
	}

	first := ""
	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseHop(hops[i])
		if !ok {
			continue
		}
		if !contains(trusted, addr) {
			return addr.String()
		}
		first = addr.String()
	}
	if first != "" {
		return first
	}
	return peer
}

func parseHop(hop string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(hop))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func inRanges(ranges []netip.Prefix, ip string) bool {
	addr, ok := parseHop(ip)
	return ok && contains(ranges, addr)
}

func contains(ranges []netip.Prefix, addr netip.Addr) bool {
	for _, r := range ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}
