package codec

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// XRPL uses its own base58 dictionary, not the bitcoin one.
const xrplDictionary = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

// TokenNodePublic is the type prefix for node public keys ("n..." addresses).
const TokenNodePublic = 0x1C

const checksumLen = 4

var xrplAlphabet = base58.NewAlphabet(xrplDictionary)

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumLen]
}

// EncodeNodePublic encodes a raw node public key into its base58 form.
func EncodeNodePublic(pub []byte) (string, error) {
	if len(pub) == 0 {
		return "", errors.New("empty public key")
	}
	payload := make([]byte, 0, 1+len(pub)+checksumLen)
	payload = append(payload, TokenNodePublic)
	payload = append(payload, pub...)
	payload = append(payload, checksum(payload)...)
	return base58.EncodeAlphabet(payload, xrplAlphabet), nil
}

// EncodeNodePublicHex is EncodeNodePublic for a hex encoded key,
// as found in UNL documents and decoded manifests.
func EncodeNodePublicHex(pubHex string) (string, error) {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return "", errors.Wrap(err, "invalid hex public key")
	}
	return EncodeNodePublic(pub)
}

// DecodeNodePublic decodes a base58 node public key back to its raw bytes.
func DecodeNodePublic(s string) ([]byte, error) {
	raw, err := base58.DecodeAlphabet(s, xrplAlphabet)
	if err != nil {
		return nil, errors.Wrap(err, "base58 decode")
	}
	if len(raw) < 1+checksumLen {
		return nil, errors.New("encoded key too short")
	}
	payload, sum := raw[:len(raw)-checksumLen], raw[len(raw)-checksumLen:]
	if payload[0] != TokenNodePublic {
		return nil, errors.Errorf("unexpected token prefix 0x%02x", payload[0])
	}
	expected := checksum(payload)
	for i := range sum {
		if sum[i] != expected[i] {
			return nil, errors.New("checksum mismatch")
		}
	}
	return payload[1:], nil
}
