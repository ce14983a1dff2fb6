package checker

import (
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const pingTimeout = 2 * time.Second

// pingHost sends one unprivileged ICMP echo to an IPv4 address and
// waits briefly for the reply. Any failure counts as no reply, many
// networks drop ICMP so callers treat a silent host as advisory only.
func pingHost(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return false
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return false
	}
	defer conn.Close()

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: []byte("dnsbunch-ns-probe"),
		},
	}

	wb, err := msg.Marshal(nil)
	if err != nil {
		return false
	}

	if _, err := conn.WriteTo(wb, &net.UDPAddr{IP: ip}); err != nil {
		return false
	}

	_ = conn.SetReadDeadline(time.Now().Add(pingTimeout))

	rb := make([]byte, 1500)
	n, _, err := conn.ReadFrom(rb)
	if err != nil {
		return false
	}

	rm, err := icmp.ParseMessage(ipv4.ICMPTypeEchoReply.Protocol(), rb[:n])
	if err != nil {
		return false
	}

	return rm.Type == ipv4.ICMPTypeEchoReply
}
