// Package crypto provides the content hashes that bind receipts to their
// model, input, output and proof bytes. All hashes are Keccak256, hex
// encoded with a 0x prefix.
package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/sha3"
)

func Keccak256(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// HashTensor hashes a quantized vector over its little-endian byte layout,
// so the digest depends only on the numeric content.
func HashTensor(data []int32) string {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return Keccak256(buf)
}

// HashCanonicalJSON hashes the RFC 8785 canonical form of v, so two
// structurally equal values always produce the same digest regardless of
// map ordering or encoder whitespace.
func HashCanonicalJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	return Keccak256(canonical), nil
}

func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Keccak256(data), nil
}
