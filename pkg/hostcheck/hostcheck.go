// Package hostcheck verifies that a configured hostname resolves to an
// address owned by the local machine, the way Replication Booster refuses
// to run against a relay log it cannot read directly off disk.
package hostcheck

import (
	"fmt"
	"net"
)

// IsLocal resolves hostOrIP and reports whether any of its IPv4 addresses
// matches an address assigned to one of this machine's network interfaces.
func IsLocal(hostOrIP string) (bool, error) {
	resolved, err := net.LookupHost(hostOrIP)
	if err != nil {
		return false, fmt.Errorf("hostcheck: resolving %q: %w", hostOrIP, err)
	}

	local, err := localIPv4Addrs()
	if err != nil {
		return false, fmt.Errorf("hostcheck: enumerating local interfaces: %w", err)
	}

	for _, addr := range resolved {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		ip4 := ip.To4()
		if ip4 == nil {
			continue
		}
		if _, ok := local[ip4.String()]; ok {
			return true, nil
		}
	}
	return false, nil
}

func localIPv4Addrs() (map[string]struct{}, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			out[ip4.String()] = struct{}{}
		}
	}
	return out, nil
}
