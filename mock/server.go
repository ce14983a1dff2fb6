// Package mock provides an in-process DNS server for tests. It serves a
// programmable zone over UDP and TCP on a loopback port so resolver and
// checker tests never touch the network.
package mock

import (
	"net"
	"strconv"

	"github.com/miekg/dns"
)

// Server is a loopback DNS server running on a random port, serving the
// same handler over UDP and TCP.
type Server struct {
	addr string
	udp  *dns.Server
	tcp  *dns.Server
}

// Serve starts a server on 127.0.0.1:0 with the given handler.
func Serve(handler dns.Handler) (*Server, error) {
	return ServeAddr("127.0.0.1:0", handler)
}

// ServeAddr starts a server on a specific host:port. Binding several
// loopback aliases (127.0.0.1, 127.0.1.1, ...) to the same port lets a
// test imitate distinct nameservers behind one configured query port.
func ServeAddr(addr string, handler dns.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	addr = ln.Addr().String()

	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		ln.Close()
		return nil, err
	}

	s := &Server{
		addr: addr,
		udp:  &dns.Server{PacketConn: pc, Handler: handler},
		tcp:  &dns.Server{Listener: ln, Handler: handler},
	}

	go func() { _ = s.udp.ActivateAndServe() }()
	go func() { _ = s.tcp.ActivateAndServe() }()

	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// IP returns the listen address without the port.
func (s *Server) IP() string {
	host, _, _ := net.SplitHostPort(s.addr)
	return host
}

// Port returns the numeric port the server listens on.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.addr)
	n, _ := strconv.Atoi(port)
	return n
}

// Close shuts both listeners down.
func (s *Server) Close() {
	_ = s.udp.Shutdown()
	_ = s.tcp.Shutdown()
}
