// Package adbsigner implements the AUTH_SIGNATURE half of the adb CNXN/AUTH
// handshake: signing the 20-byte random token a device sends, and encoding
// an RSA public key in the wire format Android's mincrypt library expects.
package adbsigner

// Signer is the seam the adb CNXN/AUTH handshake signs against. Sign must
// return a raw PKCS#1 v1.5 signature over the given token (conventionally a
// 20-byte SHA-1-sized buffer, though adb never hashes it — see Sign docs on
// each implementation). PublicKey must return the public key already
// encoded in the wire format AUTH_RSAPUBLICKEY sends: base64 of the mincrypt
// struct, a trailing space, then a "user@host" comment.
type Signer interface {
	Sign(token []byte) ([]byte, error)
	PublicKey() (string, error)
}
