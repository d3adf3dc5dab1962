package packets

import (
	"fmt"

	"github.com/udisondev/la2go/internal/constants"
)

// stringFieldCounts maps a magic to the number of length-prefixed string
// fields its payload carries. Handshake, Directive, and Response carry
// none and are left untouched by the string-field transform.
var stringFieldCounts = map[uint32]int{
	constants.MagicCredentials: 2,
	constants.MagicCredsUpdate: 2,
}

// HasStringFields reports whether magic's payload carries length-prefixed
// string fields subject to the middleware's encrypt transform.
func HasStringFields(magic uint32) bool {
	return stringFieldCounts[magic] > 0
}

// TransformStrings rewrites every length-prefixed string field in payload
// by applying fn to its decoded UTF-8 content, per spec.md §9's "pure
// transform ... over named string fields discovered via a per-class
// descriptor". Magics without string fields are returned unchanged. The
// result is written into buf and the new length returned; buf may need to
// be larger than payload when fn grows strings (e.g. encryption).
func TransformStrings(magic uint32, payload []byte, buf []byte, fn func(string) (string, error)) (int, error) {
	n, ok := stringFieldCounts[magic]
	if !ok {
		if len(buf) < len(payload) {
			return 0, fmt.Errorf("transform strings: buffer too small")
		}
		return copy(buf, payload), nil
	}

	strs, err := decodeStrings(payload, n)
	if err != nil {
		return 0, fmt.Errorf("transform strings: decode: %w", err)
	}

	transformed := make([]string, n)
	for i, s := range strs {
		out, err := fn(s)
		if err != nil {
			return 0, fmt.Errorf("transform strings: field %d: %w", i, err)
		}
		transformed[i] = out
	}

	written, err := encodeStrings(buf, transformed...)
	if err != nil {
		return 0, fmt.Errorf("transform strings: encode: %w", err)
	}
	return written, nil
}
