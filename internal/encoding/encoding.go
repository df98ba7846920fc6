// Package encoding implements the on-disk codec for meaning vectors.
package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidVector is returned when vector data cannot be encoded or decoded.
var ErrInvalidVector = errors.New("invalid vector")

// EncodeVector converts a float32 slice to bytes using little-endian encoding.
// The layout is a 4-byte element count followed by the raw float32 values.
func EncodeVector(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}

	vectorLen := len(vector)
	if vectorLen > math.MaxInt32 {
		return nil, fmt.Errorf("vector too large: %d elements exceeds maximum", vectorLen)
	}

	buf := new(bytes.Buffer)
	buf.Grow(4 + vectorLen*4)

	if err := binary.Write(buf, binary.LittleEndian, int32(vectorLen)); err != nil {
		return nil, fmt.Errorf("failed to encode vector length: %w", err)
	}

	for _, val := range vector {
		if err := binary.Write(buf, binary.LittleEndian, val); err != nil {
			return nil, fmt.Errorf("failed to encode vector value: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// DecodeVector converts bytes produced by EncodeVector back to a float32 slice.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}

	buf := bytes.NewReader(data)

	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to decode vector length: %w", err)
	}

	if length < 0 {
		return nil, ErrInvalidVector
	}

	if length == 0 {
		return []float32{}, nil
	}

	expectedBytes := int(length) * 4
	if buf.Len() < expectedBytes {
		return nil, ErrInvalidVector
	}

	vector := make([]float32, length)
	for i := int32(0); i < length; i++ {
		if err := binary.Read(buf, binary.LittleEndian, &vector[i]); err != nil {
			return nil, fmt.Errorf("failed to decode vector value at index %d: %w", i, err)
		}
	}

	return vector, nil
}

// Checksum returns the xxhash digest of an encoded vector blob. It is stored
// next to the blob and re-verified on every read so that silent corruption of
// the database file surfaces as an error instead of bad similarity scores.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ValidateVector checks that a vector is non-empty and contains only finite values.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}

	for _, val := range vector {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidVector
		}
	}

	return nil
}
