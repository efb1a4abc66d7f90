package codec

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Manifest is the decoded form of a validator manifest: the binding between a
// stable master key and the signing key currently in use, versioned by
// Sequence. Signatures are carried through untouched; this package performs no
// cryptographic verification.
type Manifest struct {
	Sequence        uint32
	MasterPublicKey []byte
	SigningPubKey   []byte
	Domain          string
}

// Serialized field headers (type nibble << 4 | field nibble).
const (
	fieldSequence        = 0x24 // UInt32, field 4
	fieldPublicKey       = 0x71 // Blob, field 1
	fieldSigningPubKey   = 0x73 // Blob, field 3
	fieldSignature       = 0x76 // Blob, field 6
	fieldDomain          = 0x77 // Blob, field 7
	fieldMasterSignature = 0x12 // Blob, field 18 (two-byte header 0x70 0x12)
)

// DecodeManifest parses a base64 encoded binary manifest. Only the fields this
// system consumes are retained; signature fields are length-skipped.
func DecodeManifest(b64 string) (*Manifest, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.Wrap(err, "manifest base64 decode")
	}

	m := &Manifest{}
	var haveSeq, haveSigning bool
	i := 0
	for i < len(data) {
		header := data[i]
		i++
		typeCode := header >> 4
		fieldCode := header & 0x0F
		if typeCode != 0 && fieldCode == 0 {
			// Low field codes only in manifests, except MasterSignature.
			if i >= len(data) {
				return nil, errors.New("truncated field header")
			}
			fieldCode = data[i]
			i++
		}

		switch typeCode {
		case 1: // UInt16
			if i+2 > len(data) {
				return nil, errors.New("truncated uint16 field")
			}
			i += 2
		case 2: // UInt32
			if i+4 > len(data) {
				return nil, errors.New("truncated uint32 field")
			}
			if header == fieldSequence {
				m.Sequence = binary.BigEndian.Uint32(data[i:])
				haveSeq = true
			}
			i += 4
		case 7: // Blob (variable length)
			length, n, err := readVL(data[i:])
			if err != nil {
				return nil, err
			}
			i += n
			if i+length > len(data) {
				return nil, errors.New("truncated blob field")
			}
			blob := data[i : i+length]
			i += length
			switch {
			case header == fieldPublicKey:
				m.MasterPublicKey = blob
			case header == fieldSigningPubKey:
				m.SigningPubKey = blob
				haveSigning = true
			case header == fieldDomain:
				m.Domain = string(blob)
			case header == fieldSignature, header>>4 == 7 && fieldCode == fieldMasterSignature:
				// signatures skipped
			}
		default:
			return nil, errors.Errorf("unsupported field type %d in manifest", typeCode)
		}
	}

	if !haveSeq || !haveSigning {
		return nil, errors.New("manifest missing sequence or signing key")
	}
	return m, nil
}

// readVL decodes the variable-length prefix used by blob fields. Returns the
// blob length and the number of prefix bytes consumed.
func readVL(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, errors.New("truncated length prefix")
	}
	b0 := int(data[0])
	switch {
	case b0 <= 192:
		return b0, 1, nil
	case b0 <= 240:
		if len(data) < 2 {
			return 0, 0, errors.New("truncated length prefix")
		}
		return 193 + (b0-193)*256 + int(data[1]), 2, nil
	case b0 <= 254:
		if len(data) < 3 {
			return 0, 0, errors.New("truncated length prefix")
		}
		return 12481 + (b0-241)*65536 + int(data[1])*256 + int(data[2]), 3, nil
	default:
		return 0, 0, errors.Errorf("invalid length prefix 0x%02x", b0)
	}
}
