package probes

import (
	"encoding/binary"
	"net"
	"testing"
)

// buildBindingResponse builds a minimal success response carrying one
// XOR-MAPPED-ADDRESS attribute, the mirror of what parseXORMappedAddress
// expects.
func buildBindingResponse(txid [12]byte, ip net.IP, port uint16) []byte {
	v4 := ip.To4()

	var val []byte
	if v4 != nil {
		val = make([]byte, 8)
		val[1] = stunFamilyIPv4
		binary.BigEndian.PutUint16(val[2:4], port^uint16(stunMagicCookie>>16))
		binary.BigEndian.PutUint32(val[4:8], binary.BigEndian.Uint32(v4)^stunMagicCookie)
	} else {
		val = make([]byte, 20)
		val[1] = stunFamilyIPv6
		binary.BigEndian.PutUint16(val[2:4], port^uint16(stunMagicCookie>>16))
		for i := 0; i < 4; i++ {
			val[4+i] = ip[i] ^ byte(stunMagicCookie>>(24-8*i))
		}
		for i := 0; i < 12; i++ {
			val[8+i] = ip[4+i] ^ txid[i]
		}
	}

	b := make([]byte, 20, 24+len(val))
	binary.BigEndian.PutUint16(b[0:2], stunBindingResponse)
	binary.BigEndian.PutUint16(b[2:4], uint16(4+len(val)))
	binary.BigEndian.PutUint32(b[4:8], stunMagicCookie)
	copy(b[8:20], txid[:])

	attr := make([]byte, 4)
	binary.BigEndian.PutUint16(attr[0:2], stunAttrXORMappedAddress)
	binary.BigEndian.PutUint16(attr[2:4], uint16(len(val)))
	b = append(b, attr...)
	b = append(b, val...)
	return b
}

func TestParseXORMappedAddress_IPv4(t *testing.T) {
	var txid [12]byte
	pkt := buildBindingResponse(txid, net.ParseIP("203.0.113.50"), 3478)

	got, err := parseXORMappedAddress(pkt, txid)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != "203.0.113.50" {
		t.Fatalf("got %q", got)
	}
}

func TestParseXORMappedAddress_IPv6(t *testing.T) {
	txid := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	pkt := buildBindingResponse(txid, net.ParseIP("2001:db8::42"), 3478)

	got, err := parseXORMappedAddress(pkt, txid)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got != "2001:db8::42" {
		t.Fatalf("got %q", got)
	}
}

func TestParseXORMappedAddress_Rejects(t *testing.T) {
	var txid [12]byte

	if _, err := parseXORMappedAddress([]byte{1, 2, 3}, txid); err == nil {
		t.Fatal("short packet accepted")
	}

	req := buildBindingRequest(txid)
	if _, err := parseXORMappedAddress(req, txid); err == nil {
		t.Fatal("request message accepted as response")
	}

	pkt := buildBindingResponse(txid, net.ParseIP("203.0.113.50"), 3478)
	binary.BigEndian.PutUint32(pkt[4:8], 0xdeadbeef)
	if _, err := parseXORMappedAddress(pkt, txid); err == nil {
		t.Fatal("bad magic cookie accepted")
	}
}

func TestBuildBindingRequest(t *testing.T) {
	txid := [12]byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	b := buildBindingRequest(txid)

	if len(b) != 20 {
		t.Fatalf("request must be a bare header, got %d bytes", len(b))
	}
	if binary.BigEndian.Uint16(b[0:2]) != stunBindingRequest {
		t.Fatal("wrong message type")
	}
	if binary.BigEndian.Uint16(b[2:4]) != 0 {
		t.Fatal("attribute length must be zero")
	}
	if binary.BigEndian.Uint32(b[4:8]) != stunMagicCookie {
		t.Fatal("missing magic cookie")
	}
}
