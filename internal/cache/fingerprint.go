package cache

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint derives the stable cache key for a translation unit. It is pure
// and deterministic: identical (text, sourceLang, targetLang, providerHint)
// always map to the same key regardless of actor. Normalization is
// whitespace-only; no locale-sensitive case folding is applied.
func Fingerprint(text, sourceLang, targetLang, providerHint string) string {
	sum := blake2b.Sum256(fingerprintInput(normalizeText(text), sourceLang, targetLang, providerHint))
	return hex.EncodeToString(sum[:])
}

// normalizeText trims surrounding whitespace and collapses internal runs of
// whitespace to a single space so trivially reformatted messages share a key.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fingerprintInput length-prefixes each field so that field boundaries cannot
// collide ("ab"+"c" vs "a"+"bc").
func fingerprintInput(fields ...string) []byte {
	size := 0
	for _, f := range fields {
		size += 4 + len(f)
	}
	buf := make([]byte, 0, size)
	var lenBuf [4]byte
	for _, f := range fields {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, f...)
	}
	return buf
}
