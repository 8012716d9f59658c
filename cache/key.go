package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Key identifies one compilation input.
type Key [32]byte

// KeyFor hashes the compiler identity, source and options. Each field is
// length-prefixed so that field boundaries cannot be shifted.
func KeyFor(compilerID, source, options string) Key {
	h := sha256.New()
	for _, field := range []string{compilerID, source, options} {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}
