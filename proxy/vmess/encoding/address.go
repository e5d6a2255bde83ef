package encoding

import "github.com/xtls/vmess-core/common/protocol"

// writeDestination appends dest's port(2)||address-type(1)||address
// wire encoding to buf, as required right after the command byte in
// a vmess request header.
func writeDestination(buf []byte, dest protocol.Destination) []byte {
	return dest.WriteTo(buf)
}

// readDestination parses a port(2)||address-type(1)||address sequence
// from b, returning the resulting address/port and bytes consumed.
func readDestination(b []byte) (protocol.Address, protocol.Port, int, error) {
	return protocol.ReadAddressPort(b)
}
