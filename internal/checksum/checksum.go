// Package checksum implements the two non-cryptographic hashes the file
// format layers on top of every structural section: a 32-bit checksum for
// the small fixed FileHeader/PacketHeader self-checks, and a 64-bit hash for
// the packet payload chain and footer. Both are deterministic,
// endianness-independent (they hash byte values, never host-endian words)
// and support streaming: Header(concat(chunks)) == streaming update, same
// for Payload.
package checksum

import (
	"hash"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
)

// Header computes the 32-bit checksum used for FileHeader and PacketHeader
// self-checks: CRC32 with the IEEE polynomial, the same family of checksum
// zlib and gzip framing already put under short fixed headers.
func Header(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// NewHeaderHasher returns a streaming hash.Hash32 equivalent to Header.
func NewHeaderHasher() hash.Hash32 {
	return crc32.NewIEEE()
}

// Payload computes the 64-bit hash used to link packets into the checksum
// chain and to validate the footer's last_payload_checksum.
func Payload(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// NewPayloadHasher returns a streaming hash.Hash64 equivalent to Payload,
// for writers that checksum a payload incrementally as it is assembled.
func NewPayloadHasher() *xxhash.Digest {
	return xxhash.New()
}
