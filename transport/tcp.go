package transport

import (
	"net"
	"time"
)

// DialTCP connects to a controller exposed over a raw TCP socket
// (ser2net, ESP3D and similar bridges).
func DialTCP(addr string, timeout time.Duration) (*LineConn, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewLineConn(c), nil
}
