package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildManifest serializes a manifest the way validators publish them:
// Sequence, PublicKey, SigningPubKey, Signature, MasterSignature.
func buildManifest(seq uint32, master, signing []byte) string {
	var buf bytes.Buffer

	buf.WriteByte(fieldSequence)
	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], seq)
	buf.Write(seqBytes[:])

	buf.WriteByte(fieldPublicKey)
	buf.WriteByte(byte(len(master)))
	buf.Write(master)

	buf.WriteByte(fieldSigningPubKey)
	buf.WriteByte(byte(len(signing)))
	buf.Write(signing)

	sig := bytes.Repeat([]byte{0xEE}, 64)
	buf.WriteByte(fieldSignature)
	buf.WriteByte(byte(len(sig)))
	buf.Write(sig)

	buf.WriteByte(0x70)
	buf.WriteByte(fieldMasterSignature)
	buf.WriteByte(byte(len(sig)))
	buf.Write(sig)

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeManifest(t *testing.T) {
	master := bytes.Repeat([]byte{0x01}, 33)
	signing := bytes.Repeat([]byte{0x02}, 33)

	m, err := DecodeManifest(buildManifest(7, master, signing))
	require.NoError(t, err)
	require.Equal(t, uint32(7), m.Sequence)
	require.Equal(t, master, m.MasterPublicKey)
	require.Equal(t, signing, m.SigningPubKey)
}

func TestDecodeManifestWithDomain(t *testing.T) {
	master := bytes.Repeat([]byte{0x01}, 33)
	signing := bytes.Repeat([]byte{0x02}, 33)

	var buf bytes.Buffer
	buf.WriteByte(fieldSequence)
	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], 3)
	buf.Write(seqBytes[:])
	buf.WriteByte(fieldPublicKey)
	buf.WriteByte(byte(len(master)))
	buf.Write(master)
	buf.WriteByte(fieldSigningPubKey)
	buf.WriteByte(byte(len(signing)))
	buf.Write(signing)
	buf.WriteByte(fieldDomain)
	domain := []byte("validator.example.net")
	buf.WriteByte(byte(len(domain)))
	buf.Write(domain)

	m, err := DecodeManifest(base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "validator.example.net", m.Domain)
}

func TestDecodeManifestErrors(t *testing.T) {
	_, err := DecodeManifest("not base64!")
	require.Error(t, err)

	// sequence only, no signing key
	var buf bytes.Buffer
	buf.WriteByte(fieldSequence)
	buf.Write([]byte{0, 0, 0, 1})
	_, err = DecodeManifest(base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.ErrorContains(t, err, "missing")

	// truncated blob
	buf.Reset()
	buf.WriteByte(fieldSigningPubKey)
	buf.WriteByte(33)
	buf.Write([]byte{0x01, 0x02})
	_, err = DecodeManifest(base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.ErrorContains(t, err, "truncated")
}

func TestReadVL(t *testing.T) {
	length, n, err := readVL([]byte{33})
	require.NoError(t, err)
	require.Equal(t, 33, length)
	require.Equal(t, 1, n)

	length, n, err = readVL([]byte{193, 0})
	require.NoError(t, err)
	require.Equal(t, 193, length)
	require.Equal(t, 2, n)

	_, _, err = readVL([]byte{255})
	require.Error(t, err)
}
