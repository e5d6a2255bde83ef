package protocol

import (
	"encoding/binary"
	"net"
	"strconv"

	"github.com/xtls/vmess-core/common/errors"
)

// Port represents a network port in TCP and UDP protocol.
type Port uint16

// PortFromBytes converts a two-byte big-endian slice to a Port.
func PortFromBytes(b []byte) Port {
	return Port(binary.BigEndian.Uint16(b))
}

func (p Port) Value() uint16 { return uint16(p) }

func (p Port) String() string { return strconv.Itoa(int(p)) }

// Network identifies the transport a Destination is reached over.
type Network byte

const (
	Network_TCP Network = iota
	Network_UDP
)

// AddressFamily distinguishes the three address encodings vmess can
// carry in a request header.
type AddressFamily byte

const (
	AddressFamilyIPv4 AddressFamily = iota
	AddressFamilyDomain
	AddressFamilyIPv6
)

// vmess wire address-type octet values, distinct from AddressFamily's
// in-memory ordering.
const (
	addrTypeIPv4   byte = 0x01
	addrTypeDomain byte = 0x02
	addrTypeIPv6   byte = 0x03
)

// Address is a vmess request target address: an IPv4, IPv6 or domain name.
type Address struct {
	family AddressFamily
	ip     net.IP
	domain string
}

// DomainAddress creates an Address from a domain name.
func DomainAddress(domain string) Address {
	return Address{family: AddressFamilyDomain, domain: domain}
}

// IPAddress creates an Address from a net.IP, inferring v4 vs v6.
func IPAddress(ip net.IP) Address {
	if v4 := ip.To4(); v4 != nil {
		return Address{family: AddressFamilyIPv4, ip: v4}
	}
	return Address{family: AddressFamilyIPv6, ip: ip.To16()}
}

func (a Address) Family() AddressFamily { return a.family }

func (a Address) IP() net.IP { return a.ip }

func (a Address) Domain() string { return a.domain }

func (a Address) String() string {
	switch a.family {
	case AddressFamilyDomain:
		return a.domain
	default:
		return a.ip.String()
	}
}

// wireType returns the vmess wire address-type octet for this Address.
func (a Address) wireType() byte {
	switch a.family {
	case AddressFamilyIPv4:
		return addrTypeIPv4
	case AddressFamilyIPv6:
		return addrTypeIPv6
	default:
		return addrTypeDomain
	}
}

// Destination is a vmess request target: network, address and port.
type Destination struct {
	Address Address
	Port    Port
	Network Network
}

// TCPDestination creates a TCP destination with the given address and port.
func TCPDestination(address Address, port Port) Destination {
	return Destination{Network: Network_TCP, Address: address, Port: port}
}

// UDPDestination creates a UDP destination with the given address and port.
func UDPDestination(address Address, port Port) Destination {
	return Destination{Network: Network_UDP, Address: address, Port: port}
}

// WriteTo appends this Destination's wire encoding — port(2, big
// endian) || address-type(1) || address — to buf, matching a vmess
// request header's address section.
func (d Destination) WriteTo(buf []byte) []byte {
	var portBytes [2]byte
	binary.BigEndian.PutUint16(portBytes[:], d.Port.Value())
	buf = append(buf, portBytes[:]...)
	buf = append(buf, d.Address.wireType())

	switch d.Address.family {
	case AddressFamilyIPv4:
		buf = append(buf, d.Address.ip.To4()...)
	case AddressFamilyIPv6:
		buf = append(buf, d.Address.ip.To16()...)
	case AddressFamilyDomain:
		domain := d.Address.domain
		if len(domain) > 255 {
			panic("domain name too long")
		}
		buf = append(buf, byte(len(domain)))
		buf = append(buf, domain...)
	}
	return buf
}

// ReadAddressPort parses a port(2) || address-type(1) || address
// sequence from b, returning the resulting Address, Port and the
// number of bytes consumed.
func ReadAddressPort(b []byte) (Address, Port, int, error) {
	if len(b) < 3 {
		return Address{}, 0, 0, errors.New("address/port buffer too short")
	}
	port := PortFromBytes(b[0:2])
	addrType := b[2]
	rest := b[3:]

	switch addrType {
	case addrTypeIPv4:
		if len(rest) < 4 {
			return Address{}, 0, 0, errors.New("truncated ipv4 address")
		}
		return IPAddress(net.IP(rest[:4])), port, 3 + 4, nil
	case addrTypeIPv6:
		if len(rest) < 16 {
			return Address{}, 0, 0, errors.New("truncated ipv6 address")
		}
		return IPAddress(net.IP(rest[:16])), port, 3 + 16, nil
	case addrTypeDomain:
		if len(rest) < 1 {
			return Address{}, 0, 0, errors.New("truncated domain length")
		}
		n := int(rest[0])
		if len(rest) < 1+n {
			return Address{}, 0, 0, errors.New("truncated domain name")
		}
		domain := string(rest[1 : 1+n])
		return DomainAddress(domain), port, 3 + 1 + n, nil
	default:
		return Address{}, 0, 0, errors.New("unknown address type: ", addrType)
	}
}
