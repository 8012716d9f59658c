package cache

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/clspv"
)

// Record is the stored form of one successful emission.
type Record struct {
	Status     int      `cbor:"1,keyasint"`
	Words      []uint32 `cbor:"2,keyasint"`
	Log        string   `cbor:"3,keyasint,omitempty"`
	CompilerID string   `cbor:"4,keyasint,omitempty"`
	CreatedAt  int64    `cbor:"5,keyasint"` // unix seconds
}

// Emission converts the record back into a compiler emission.
func (r *Record) Emission() clspv.Emission {
	return clspv.Emission{Status: r.Status, Words: r.Words, Log: r.Log}
}

// Created returns the creation time of the record.
func (r *Record) Created() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// cborEncMode uses canonical encoding so equal records encode to equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalRecord serializes a Record to CBOR bytes.
func MarshalRecord(r *Record) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRecord deserializes a Record from CBOR bytes.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("cache: unmarshal record: %w", err)
	}
	return &r, nil
}
