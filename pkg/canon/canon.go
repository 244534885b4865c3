// Package canon implements RFC 8785 JSON Canonicalization (JCS) and the
// content-hashing primitives built on top of it.
//
// Every signed object in the gateway — envelopes, receipts, capability
// tokens — is hashed and signed over its JCS-canonical bytes rather than
// over whatever byte-for-byte JSON happened to arrive on the wire, so two
// semantically identical objects always hash identically regardless of key
// order or whitespace.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Output bundles the canonical bytes of a value with its SHA-256 hash.
type Output struct {
	CanonicalBytes []byte
	Hash           [32]byte
}

// HashHex returns the hash as a lowercase hex string.
func (o Output) HashHex() string {
	return hex.EncodeToString(o.Hash[:])
}

// Canonicalize serializes v to JSON and rewrites it into JCS canonical form:
// object keys sorted by UTF-16 code unit, no insignificant whitespace, and
// minimal string escaping. Numbers are re-emitted exactly as encoding/json
// produced them (Go's json.Marshal already emits the shortest round-trip
// decimal for float64 and exact digits for integers), which satisfies JCS's
// "consistent, minimal" numeric requirement for every value this gateway
// actually signs — timestamps, counts, and budgets never carry a
// platform-dependent float representation.
func Canonicalize(v any) (*Output, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON re-parses arbitrary JSON bytes and rewrites them into JCS
// canonical form.
func CanonicalizeJSON(raw []byte) (*Output, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, parsed); err != nil {
		return nil, err
	}

	canonicalBytes := buf.Bytes()
	hash := sha256.Sum256(canonicalBytes)
	return &Output{CanonicalBytes: canonicalBytes, Hash: hash}, nil
}

// HashJSON canonicalizes v and returns only its hash.
func HashJSON(v any) ([32]byte, error) {
	out, err := Canonicalize(v)
	if err != nil {
		return [32]byte{}, err
	}
	return out.Hash, nil
}

// HashBytes returns the SHA-256 hash of raw bytes (no canonicalization).
func HashBytes(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		writeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return utf16Less(keys[i], keys[j])
		})
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canon: unsupported type %T", v)
	}
	return nil
}

// utf16Less compares two strings by UTF-16 code unit sequence, as JCS
// requires (RFC 8785 §3.2.3), not by raw byte or rune order.
func utf16Less(a, b string) bool {
	au := utf16Units(a)
	bu := utf16Units(b)
	n := len(au)
	if len(bu) < n {
		n = len(bu)
	}
	for i := 0; i < n; i++ {
		if au[i] != bu[i] {
			return au[i] < bu[i]
		}
	}
	return len(au) < len(bu)
}

func utf16Units(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return units
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
