package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DomainRecord prefixes record digests.
// Version suffix enables future algorithm migration.
const DomainRecord = "statespace/record/v1"

// Digest computes the content address of a record within a partition.
// Format: SHA256(domain + 0x00 + partition(u16 LE) + data)
// The null byte separator prevents domain/data boundary ambiguity.
func Digest(partition uint16, data []byte) string {
	var p [2]byte
	binary.LittleEndian.PutUint16(p[:], partition)

	h := sha256.New()
	h.Write([]byte(DomainRecord))
	h.Write([]byte{0x00})
	h.Write(p[:])
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
