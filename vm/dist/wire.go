package dist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode is the canonical encoding mode; hashing depends on
// deterministic output.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalChunk serializes a Chunk to CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("dist: unmarshal chunk: %w", err)
	}
	return &c, nil
}

// MarshalProgram serializes a Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("dist: unmarshal program: %w", err)
	}
	return &p, nil
}
