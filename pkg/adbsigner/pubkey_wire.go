package adbsigner

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"math/big"

	"adbhost/internal/adberr"
)

// Android's mincrypt RSAPublicKey wire struct, little-endian throughout:
//
//	uint32 modulus_size_words   (RSANUMWORDS, always 64 for a 2048-bit key)
//	uint32 n0inv                (-1 / modulus[0] mod 2^32)
//	uint32 modulus[64]          (little-endian words, least-significant first)
//	uint32 rr[64]               (R^2 mod modulus, same word order, for Montgomery reduction)
//	uint32 exponent             (the public exponent, e.g. 65537)
const rsaNumWords = 64

// EncodeMincryptPublicKey renders pub in the binary layout libmincrypt (and
// therefore adbd) expects for AUTH_RSAPUBLICKEY, base64-encoded with a
// trailing " comment" the way real adb keys carry a "user@host" suffix.
func EncodeMincryptPublicKey(pub *rsa.PublicKey, comment string) (string, error) {
	modulus := pub.N
	if modulus.BitLen() > rsaNumWords*32 {
		return "", adberr.New(adberr.InvalidCommand, "rsa modulus too large for mincrypt encoding (%d bits)", modulus.BitLen())
	}

	words := rsaNumWords
	r := new(big.Int).Lsh(big.NewInt(1), uint(words*32))

	// n0inv = -modulus^-1 mod 2^32
	n0 := new(big.Int).And(modulus, big.NewInt(0xFFFFFFFF))
	n0inv := new(big.Int).ModInverse(n0, big.NewInt(1<<32))
	if n0inv == nil {
		return "", adberr.New(adberr.InvalidCommand, "rsa modulus has no inverse mod 2^32")
	}
	n0inv = n0inv.Neg(n0inv)
	n0inv = n0inv.Mod(n0inv, big.NewInt(1<<32))

	// rr = R^2 mod modulus
	rr := new(big.Int).Mul(r, r)
	rr.Mod(rr, modulus)

	buf := make([]byte, 8+words*4+words*4+4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(words))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n0inv.Uint64()))

	writeWords(buf[8:8+words*4], modulus, words)
	writeWords(buf[8+words*4:8+words*8], rr, words)

	binary.LittleEndian.PutUint32(buf[8+words*8:], uint32(pub.E))

	encoded := base64.StdEncoding.EncodeToString(buf)
	if comment != "" {
		return encoded + " " + comment, nil
	}
	return encoded, nil
}

// writeWords writes n as `words` little-endian uint32 words into out,
// least-significant word first, zero-padding any high words.
func writeWords(out []byte, n *big.Int, words int) {
	mask := big.NewInt(0xFFFFFFFF)
	tmp := new(big.Int).Set(n)
	for i := 0; i < words; i++ {
		word := new(big.Int).And(tmp, mask)
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], uint32(word.Uint64()))
		tmp.Rsh(tmp, 32)
	}
}
