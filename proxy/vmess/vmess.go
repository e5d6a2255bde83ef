// Package vmess implements the client-side half of the vmess proxy
// protocol: handshake request construction, response parsing and the
// chunked AEAD framing of proxied payload bytes.
package vmess

const (
	// Version is the only request version this core emits.
	Version byte = 1

	// OptionChunkStream marks a request as using chunked framing for
	// its payload, the only framing mode this core implements. The
	// value is fixed at 0x05, not the 0x01 bit xray-core's own option
	// mask uses for the same concept — see DESIGN.md's Open Questions
	// for why this core follows the literal wire value instead.
	OptionChunkStream byte = 0x05

	CommandTCP byte = 0x01
	CommandUDP byte = 0x02

	// MaxChunkSize bounds a single chunk's length field: its ciphertext
	// plus AEAD tag, so the plaintext per chunk is MaxChunkSize minus
	// the tag overhead.
	MaxChunkSize = 16 * 1024

	// IDBytesLen is the length of a user ID and its derived cmdKey.
	IDBytesLen = 16
)
