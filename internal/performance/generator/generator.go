// Package generator turns sequence indices into keys and values.
//
// Every generator is a pure function of the index: the same index always
// yields the same bytes, so a value written for index i can be recognised
// when read back.
package generator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownType is returned for an unrecognised generator type tag.
var ErrUnknownType = errors.New("generator: unknown type")

// Generator derives bytes from an index.
type Generator interface {
	Generate(idx int64) []byte
	Description() string
}

// Verifier is implemented by generators whose output can be checked
// against the index it was generated from.
type Verifier interface {
	Verify(idx int64, value []byte) bool
}

// Type is a generator type tag.
type Type string

const (
	TypeLong     Type = "long"
	TypeString   Type = "string"
	TypeBytes    Type = "bytes"
	TypeUUID     Type = "uuid"
	TypeVerified Type = "verified"
)

// Spec selects and sizes a generator.
type Spec struct {
	Type   Type
	Length int
}

// New builds the generator described by spec. Length applies to string,
// bytes and verified generators.
func New(spec Spec) (Generator, error) {
	t := Type(strings.ToLower(string(spec.Type)))
	switch t {
	case TypeLong:
		return Long{}, nil
	case TypeUUID:
		return UUID{}, nil
	case TypeString, TypeBytes, TypeVerified:
		if spec.Length <= 0 {
			return nil, fmt.Errorf("generator: %s length must be positive, got %d", t, spec.Length)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, spec.Type)
	}

	switch t {
	case TypeString:
		return String{Length: spec.Length}, nil
	case TypeBytes:
		return Bytes{Length: spec.Length}, nil
	default:
		if spec.Length < verifiedHeader {
			return nil, fmt.Errorf("generator: verified length must be at least %d, got %d", verifiedHeader, spec.Length)
		}
		return Verified{Length: spec.Length}, nil
	}
}

// Long renders the index in decimal.
type Long struct{}

func (Long) Generate(idx int64) []byte {
	return strconv.AppendInt(nil, idx, 10)
}

func (Long) Description() string { return "long" }

// String renders Length alphanumeric characters derived from the index.
type String struct {
	Length int
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (s String) Generate(idx int64) []byte {
	out := make([]byte, s.Length)
	state := uint64(idx)
	var word uint64
	for i := range out {
		if i%8 == 0 {
			word = splitmix(&state)
		}
		out[i] = alphabet[int(word&0xff)%len(alphabet)]
		word >>= 8
	}
	return out
}

func (s String) Description() string { return fmt.Sprintf("string(%d)", s.Length) }

// Bytes fills Length bytes from a splitmix64 stream seeded by the index.
type Bytes struct {
	Length int
}

func (b Bytes) Generate(idx int64) []byte {
	out := make([]byte, b.Length)
	fill(out, uint64(idx))
	return out
}

func (b Bytes) Description() string { return fmt.Sprintf("bytes(%d)", b.Length) }

// UUID renders the name-based SHA-1 UUID of the index.
type UUID struct{}

func (UUID) Generate(idx int64) []byte {
	var name [8]byte
	binary.BigEndian.PutUint64(name[:], uint64(idx))
	return []byte(uuid.NewSHA1(uuid.NameSpaceOID, name[:]).String())
}

func (UUID) Description() string { return "uuid" }

// verifiedHeader is the index (8 bytes) plus the CRC32C of the payload (4 bytes).
const verifiedHeader = 12

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Verified embeds the index and a checksum ahead of a deterministic
// payload, so a value read back can be checked for both corruption and
// belonging to the right key.
type Verified struct {
	Length int
}

func (v Verified) Generate(idx int64) []byte {
	out := make([]byte, v.Length)
	binary.BigEndian.PutUint64(out[0:8], uint64(idx))
	fill(out[verifiedHeader:], uint64(idx))
	binary.BigEndian.PutUint32(out[8:12], crc32.Checksum(out[verifiedHeader:], castagnoli))
	return out
}

// Verify reports whether value was generated for idx and is intact.
func (v Verified) Verify(idx int64, value []byte) bool {
	if len(value) != v.Length {
		return false
	}
	if int64(binary.BigEndian.Uint64(value[0:8])) != idx {
		return false
	}
	return binary.BigEndian.Uint32(value[8:12]) == crc32.Checksum(value[verifiedHeader:], castagnoli)
}

func (v Verified) Description() string { return fmt.Sprintf("verified(%d)", v.Length) }

func splitmix(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func fill(dst []byte, seed uint64) {
	state := seed
	var buf [8]byte
	for i := 0; i < len(dst); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], splitmix(&state))
		copy(dst[i:], buf[:])
	}
}
