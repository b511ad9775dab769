package probes

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"time"
)

// Minimal STUN binding client. Only XOR-MAPPED-ADDRESS parsing is
// supported; full RFC 5389 compliance is not a goal here.
const (
	stunBindingRequest  uint16 = 0x0001
	stunBindingResponse uint16 = 0x0101

	stunMagicCookie uint32 = 0x2112A442

	stunAttrXORMappedAddress uint16 = 0x0020

	stunFamilyIPv4 byte = 0x01
	stunFamilyIPv6 byte = 0x02
)

// stunBindingAddress sends one binding request to a rendezvous server and
// returns the externally visible address it reports.
func stunBindingAddress(ctx context.Context, server string, timeout time.Duration) (string, error) {
	dialer := net.Dialer{Timeout: timeout}

	c, err := dialer.DialContext(ctx, "udp", server)
	if err != nil {
		return "", err
	}
	defer c.Close()

	var txid [12]byte
	if _, err := rand.Read(txid[:]); err != nil {
		return "", err
	}

	if _, err := c.Write(buildBindingRequest(txid)); err != nil {
		return "", err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.SetReadDeadline(deadline)

	buf := make([]byte, 1500)
	n, err := c.Read(buf)
	if err != nil || n < 20 {
		if err == nil {
			err = errors.New("stun: short response")
		}
		return "", err
	}

	return parseXORMappedAddress(buf[:n], txid)
}

func buildBindingRequest(txid [12]byte) []byte {
	// 20-byte header: type, attribute length, magic cookie, transaction id.
	b := make([]byte, 20)
	binary.BigEndian.PutUint16(b[0:2], stunBindingRequest)
	binary.BigEndian.PutUint16(b[2:4], 0)
	binary.BigEndian.PutUint32(b[4:8], stunMagicCookie)
	copy(b[8:20], txid[:])
	return b
}

func parseXORMappedAddress(pkt []byte, txid [12]byte) (string, error) {
	if len(pkt) < 20 {
		return "", errors.New("stun: short packet")
	}

	if binary.BigEndian.Uint16(pkt[0:2]) != stunBindingResponse {
		// Error and indication classes carry no mapped address we care about.
		return "", errors.New("stun: not a binding response")
	}

	msgLen := int(binary.BigEndian.Uint16(pkt[2:4]))
	if 20+msgLen > len(pkt) {
		return "", errors.New("stun: invalid length")
	}
	if binary.BigEndian.Uint32(pkt[4:8]) != stunMagicCookie {
		return "", errors.New("stun: bad magic cookie")
	}

	attrs := pkt[20 : 20+msgLen]
	for len(attrs) >= 4 {
		typ := binary.BigEndian.Uint16(attrs[0:2])
		l := int(binary.BigEndian.Uint16(attrs[2:4]))
		if 4+l > len(attrs) {
			break
		}

		if typ == stunAttrXORMappedAddress {
			return decodeXORMappedAddress(attrs[4:4+l], txid)
		}

		// Attributes are padded to a multiple of 4 bytes.
		adv := 4 + l
		if adv%4 != 0 {
			adv += 4 - (adv % 4)
		}
		attrs = attrs[adv:]
	}

	return "", errors.New("stun: xor-mapped-address not found")
}

func decodeXORMappedAddress(val []byte, txid [12]byte) (string, error) {
	if len(val) < 4 {
		return "", errors.New("stun: xor-mapped-address too short")
	}

	switch val[1] {
	case stunFamilyIPv4:
		if len(val) < 8 {
			return "", errors.New("stun: ipv4 addr too short")
		}
		addr := binary.BigEndian.Uint32(val[4:8]) ^ stunMagicCookie
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, addr)
		return ip.String(), nil

	case stunFamilyIPv6:
		if len(val) < 20 {
			return "", errors.New("stun: ipv6 addr too short")
		}
		ip := make(net.IP, 16)
		// First 4 bytes are XORed with the cookie, the rest with the
		// transaction id.
		for i := 0; i < 4; i++ {
			ip[i] = val[4+i] ^ byte(stunMagicCookie>>(24-8*i))
		}
		for i := 0; i < 12; i++ {
			ip[4+i] = val[8+i] ^ txid[i]
		}
		return ip.String(), nil

	default:
		return "", errors.New("stun: unsupported family")
	}
}
