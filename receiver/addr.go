package receiver

import (
	"fmt"
	"net"
)

func resolveUDPAddr(hostPort string) (net.Addr, error) {
	addr, err := net.ResolveUDPAddr("udp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("receiver: resolve %s: %w", hostPort, err)
	}
	return addr, nil
}
