// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

// Package ident implements the opaque 63-bit identifiers used by every
// persistent entity and their base62 external form.
package ident

import (
	"context"

	"github.com/zeebo/errs"
)

// Error is the default ident errs class.
var Error = errs.Class("ident")

// ErrDecoding is returned for strings that are not the canonical base62
// form of an id of the requested kind.
var ErrDecoding = errs.Class("id decoding")

// Kind tags an id with the entity family it was allocated for. Ids are
// unique within their kind only.
type Kind uint8

const (
	// KindUser identifies user ids.
	KindUser Kind = 1
	// KindTeam identifies team ids.
	KindTeam Kind = 2
	// KindProject identifies project ids.
	KindProject Kind = 3
	// KindVersion identifies version ids.
	KindVersion Kind = 4
	// KindOrganization identifies organization ids.
	KindOrganization Kind = 5
	// KindGalleryItem identifies gallery item ids.
	KindGalleryItem Kind = 6
)

// String returns the kind name used in sequence rows and log fields.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindTeam:
		return "team"
	case KindProject:
		return "project"
	case KindVersion:
		return "version"
	case KindOrganization:
		return "organization"
	case KindGalleryItem:
		return "gallery_item"
	default:
		return "unknown"
	}
}

// Valid reports whether the kind is one of the known entity families.
func (k Kind) Valid() bool {
	return k >= KindUser && k <= KindGalleryItem
}

const (
	kindShift = 58
	seqMask   = uint64(1)<<kindShift - 1
)

// ID is a 63-bit identifier. The kind lives in bits 58-62, the per-kind
// sequence number in bits 0-57. The top bit is always clear so the value
// survives signed 64-bit storage.
type ID uint64

// New composes an id from a kind and a sequence number.
func New(kind Kind, seq uint64) (ID, error) {
	if !kind.Valid() {
		return 0, Error.New("invalid kind %d", kind)
	}
	if seq > seqMask {
		return 0, Error.New("sequence space exhausted for kind %s", kind)
	}
	return ID(uint64(kind)<<kindShift | seq), nil
}

// Kind returns the kind encoded in the id.
func (id ID) Kind() Kind { return Kind(uint64(id) >> kindShift) }

// Seq returns the per-kind sequence number.
func (id ID) Seq() uint64 { return uint64(id) & seqMask }

// IsZero reports whether the id is the zero value.
func (id ID) IsZero() bool { return id == 0 }

// String returns the base62 external form.
func (id ID) String() string { return Encode(id) }

// MarshalJSON encodes the id as a base62 JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Encode(id) + `"`), nil
}

// UnmarshalJSON decodes a base62 JSON string without a kind check; the
// boundary that knows the expected kind calls Decode instead.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return ErrDecoding.New("id must be a string")
	}
	decoded, err := DecodeAny(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = decoded
	return nil
}

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var alphabetIndex [256]int8

func init() {
	for i := range alphabetIndex {
		alphabetIndex[i] = -1
	}
	for i, c := range alphabet {
		alphabetIndex[c] = int8(i)
	}
}

// Encode returns the shortest base62 form of the unsigned id value.
func Encode(id ID) string {
	n := uint64(id)
	if n == 0 {
		return "0"
	}
	var buf [11]byte // ceil(63 / log2(62)) digits suffice
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}

// DecodeAny parses a canonical base62 string into an id of any kind.
// Strings whose re-encoding differs from the input (leading zeros,
// overflow past 2^63) are rejected.
func DecodeAny(s string) (ID, error) {
	if s == "" {
		return 0, ErrDecoding.New("empty id")
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		d := alphabetIndex[s[i]]
		if d < 0 {
			return 0, ErrDecoding.New("invalid character %q", s[i])
		}
		if n > (1<<63-1-uint64(d))/62 {
			return 0, ErrDecoding.New("id out of range")
		}
		n = n*62 + uint64(d)
	}
	id := ID(n)
	if Encode(id) != s {
		return 0, ErrDecoding.New("non-canonical id %q", s)
	}
	return id, nil
}

// Decode parses a canonical base62 string and verifies it names an id of
// the given kind.
func Decode(kind Kind, s string) (ID, error) {
	id, err := DecodeAny(s)
	if err != nil {
		return 0, err
	}
	if id.Kind() != kind {
		return 0, ErrDecoding.New("%q is not a %s id", s, kind)
	}
	return id, nil
}

// Allocator hands out fresh ids from per-kind monotonic sequences. The
// store owns the sequences; this is the contract the services see.
type Allocator interface {
	// Allocate returns the next unused id of the given kind.
	Allocate(ctx context.Context, kind Kind) (ID, error)
}
