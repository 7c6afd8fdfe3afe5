// Package signer computes the keyed digests that identify persisted queries.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Algorithm names the digest recorded in manifests.
const Algorithm = "hmac-sha256"

// Key is an immutable HMAC-SHA256 signing key. The zero value signs with an
// empty key. A Key is safe for concurrent use.
type Key struct {
	secret []byte
}

// NewKey copies secret into a new Key.
func NewKey(secret []byte) Key {
	return Key{secret: append([]byte(nil), secret...)}
}

// Sign returns the HMAC of the UTF-8 bytes of text.
func (k Key) Sign(text string) Signature {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(text))
	return Signature(mac.Sum(nil))
}

// Signature is a raw HMAC tag.
type Signature []byte

// Hex returns the lowercase hexadecimal form used in signature files.
func (s Signature) Hex() string { return hex.EncodeToString(s) }

// Equal compares two signatures in constant time.
func (s Signature) Equal(o Signature) bool { return hmac.Equal(s, o) }
