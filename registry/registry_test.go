package registry

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xrplwatch/valtrack/codec"
	"github.com/xrplwatch/valtrack/names"
	"github.com/xrplwatch/valtrack/stream"
	"github.com/xrplwatch/valtrack/unl"
)

type fakeFetcher struct {
	blob *unl.Blob
	err  error
}

func (f *fakeFetcher) Fetch(context.Context) (*unl.Blob, error) {
	return f.blob, f.err
}

// keyPair is a synthetic validator: raw master and signing keys plus their
// encoded forms.
type keyPair struct {
	masterRaw  []byte
	signingRaw []byte
	master     string
	signing    string
}

func newKeyPair(t *testing.T, seed byte) keyPair {
	t.Helper()
	masterRaw := bytes.Repeat([]byte{seed}, 33)
	signingRaw := bytes.Repeat([]byte{seed + 0x80}, 33)
	master, err := codec.EncodeNodePublic(masterRaw)
	require.NoError(t, err)
	signing, err := codec.EncodeNodePublic(signingRaw)
	require.NoError(t, err)
	return keyPair{masterRaw: masterRaw, signingRaw: signingRaw, master: master, signing: signing}
}

// rotate derives a fresh signing key for the same master.
func (k keyPair) rotate(t *testing.T, seed byte) keyPair {
	t.Helper()
	rotated := k
	rotated.signingRaw = bytes.Repeat([]byte{seed}, 33)
	signing, err := codec.EncodeNodePublic(rotated.signingRaw)
	require.NoError(t, err)
	rotated.signing = signing
	return rotated
}

func encodeManifest(seq uint32, master, signing []byte) string {
	var buf bytes.Buffer
	buf.WriteByte(0x24) // Sequence
	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], seq)
	buf.Write(seqBytes[:])
	buf.WriteByte(0x71) // PublicKey
	buf.WriteByte(byte(len(master)))
	buf.Write(master)
	buf.WriteByte(0x73) // SigningPubKey
	buf.WriteByte(byte(len(signing)))
	buf.Write(signing)
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func listEntry(k keyPair, seq uint32) unl.Entry {
	return unl.Entry{
		ValidationPublicKey: hex.EncodeToString(k.masterRaw),
		Manifest:            encodeManifest(seq, k.masterRaw, k.signingRaw),
	}
}

type capture struct {
	updates []UnlData
	votes   []Vote
	closes  []string
}

func newTestRegistry(t *testing.T, fetcher ListFetcher, opts Options) (*Registry, *capture) {
	t.Helper()
	cap := &capture{}
	cb := Callbacks{
		OnUnlData:    func(u UnlData) { cap.updates = append(cap.updates, u) },
		OnValidation: func(v Vote) { cap.votes = append(cap.votes, v) },
		OnStreamClose: func(address string, err error) {
			cap.closes = append(cap.closes, address)
		},
	}
	resolver := names.NewResolver(zap.NewNop(), "")
	return New(zap.NewNop(), fetcher, resolver, cb, opts), cap
}

func TestRefreshUNLReconciliation(t *testing.T) {
	a := newKeyPair(t, 0x01)
	b := newKeyPair(t, 0x02)
	c := newKeyPair(t, 0x03)
	d := newKeyPair(t, 0x04)

	fetcher := &fakeFetcher{blob: &unl.Blob{
		Sequence:   1,
		Validators: []unl.Entry{listEntry(a, 1), listEntry(b, 1), listEntry(c, 1)},
	}}
	r, cap := newTestRegistry(t, fetcher, Options{})

	require.NoError(t, r.RefreshUNL(context.Background()))
	require.Len(t, cap.updates, 3)
	for _, update := range cap.updates {
		require.True(t, update.IsNewValidator)
		require.True(t, update.IsNewManifest)
		require.True(t, update.IsDuringStartup)
		require.False(t, update.IsFromManifestsStream)
	}

	// {A,B,C} -> {B,C,D}: A removed, B/C silent, D added
	cap.updates = nil
	fetcher.blob = &unl.Blob{
		Sequence:   2,
		Validators: []unl.Entry{listEntry(b, 1), listEntry(c, 1), listEntry(d, 1)},
	}
	require.NoError(t, r.RefreshUNL(context.Background()))

	require.Len(t, cap.updates, 1)
	require.Equal(t, d.master, cap.updates[0].PublicKey)
	require.True(t, cap.updates[0].IsNewValidator)
	require.False(t, cap.updates[0].IsDuringStartup)

	validators := r.Validators()
	require.Len(t, validators, 3)
	for _, identity := range validators {
		require.NotEqual(t, a.master, identity.MasterKey)
	}
	require.NotContains(t, r.bySigningKey, a.signing)
}

func TestRefreshUNLStaleSequence(t *testing.T) {
	a := newKeyPair(t, 0x11)
	fetcher := &fakeFetcher{blob: &unl.Blob{
		Sequence:   5,
		Validators: []unl.Entry{listEntry(a, 1)},
	}}
	r, cap := newTestRegistry(t, fetcher, Options{})
	require.NoError(t, r.RefreshUNL(context.Background()))
	require.Len(t, cap.updates, 1)

	// same sequence again: silent no-op
	cap.updates = nil
	require.NoError(t, r.RefreshUNL(context.Background()))
	require.Empty(t, cap.updates)

	// lower sequence: silent no-op
	fetcher.blob.Sequence = 4
	require.NoError(t, r.RefreshUNL(context.Background()))
	require.Empty(t, cap.updates)
	require.Len(t, r.Validators(), 1)
}

func TestRefreshUNLMalformedEntryNoPartialState(t *testing.T) {
	a := newKeyPair(t, 0x21)
	fetcher := &fakeFetcher{blob: &unl.Blob{
		Sequence: 1,
		Validators: []unl.Entry{
			listEntry(a, 1),
			{ValidationPublicKey: "nothex", Manifest: "AAAA"},
		},
	}}
	r, cap := newTestRegistry(t, fetcher, Options{})

	require.Error(t, r.RefreshUNL(context.Background()))
	require.Empty(t, cap.updates)
	require.Empty(t, r.Validators())
	require.Equal(t, uint32(0), r.listSequence)
}

func TestManifestMonotonicity(t *testing.T) {
	x := newKeyPair(t, 0x31)
	fetcher := &fakeFetcher{blob: &unl.Blob{
		Sequence:   1,
		Validators: []unl.Entry{listEntry(x, 2)},
	}}
	r, _ := newTestRegistry(t, fetcher, Options{})
	require.NoError(t, r.RefreshUNL(context.Background()))

	// interleaved and duplicated updates; the max sequence wins
	rotations := map[uint32]keyPair{
		1: x.rotate(t, 0x41),
		3: x.rotate(t, 0x43),
		5: x.rotate(t, 0x45),
	}
	for _, seq := range []uint32{3, 1, 5, 3, 5, 2} {
		k, ok := rotations[seq]
		if !ok {
			k = x
		}
		r.handleManifest(&stream.ManifestMessage{
			MasterKey:  x.master,
			SigningKey: k.signing,
			Sequence:   seq,
		})
	}

	validators := r.Validators()
	require.Len(t, validators, 1)
	require.Equal(t, uint32(5), validators[0].Sequence)
	require.Equal(t, rotations[5].signing, validators[0].SigningKey)

	// exactly one inverse-index entry, pointing at the live signing key
	require.Len(t, r.bySigningKey, 1)
	require.Equal(t, x.master, r.bySigningKey[rotations[5].signing])
}

func TestManifestUnknownIdentityIgnored(t *testing.T) {
	unknown := newKeyPair(t, 0x51)
	fetcher := &fakeFetcher{blob: &unl.Blob{Sequence: 1}}
	r, cap := newTestRegistry(t, fetcher, Options{})

	r.handleManifest(&stream.ManifestMessage{
		MasterKey:  unknown.master,
		SigningKey: unknown.signing,
		Sequence:   9,
	})
	require.Empty(t, cap.updates)
	require.Empty(t, r.Validators())
	require.Empty(t, r.bySigningKey)
}

func TestEndToEndManifestFlow(t *testing.T) {
	x := newKeyPair(t, 0x61)
	fetcher := &fakeFetcher{blob: &unl.Blob{
		Sequence:   5,
		Validators: []unl.Entry{listEntry(x, 2)},
	}}
	r, cap := newTestRegistry(t, fetcher, Options{})

	require.NoError(t, r.RefreshUNL(context.Background()))
	require.Len(t, cap.updates, 1)
	require.True(t, cap.updates[0].IsNewValidator)
	require.True(t, cap.updates[0].IsNewManifest)
	require.Equal(t, uint32(2), cap.updates[0].Sequence)

	rotated := x.rotate(t, 0x62)
	r.handleManifest(&stream.ManifestMessage{
		MasterKey:  x.master,
		SigningKey: rotated.signing,
		Sequence:   3,
	})
	require.Len(t, cap.updates, 2)
	require.False(t, cap.updates[1].IsNewValidator)
	require.True(t, cap.updates[1].IsNewManifest)
	require.True(t, cap.updates[1].IsFromManifestsStream)
	require.Equal(t, uint32(3), cap.updates[1].Sequence)

	// a stale rotation after the fact changes nothing
	r.handleManifest(&stream.ManifestMessage{
		MasterKey:  x.master,
		SigningKey: x.signing,
		Sequence:   2,
	})
	require.Len(t, cap.updates, 2)
	require.Equal(t, rotated.signing, r.Validators()[0].SigningKey)
}

func sampleValidation(k keyPair, ledgerIndex string) *stream.ValidationMessage {
	return &stream.ValidationMessage{
		Flags:               0x80000001,
		Full:                true,
		LedgerHash:          "ABCDEF0123456789",
		LedgerIndex:         ledgerIndex,
		SigningTime:         700000000,
		ValidationPublicKey: k.signing,
		Signature:           "304402",
	}
}

func TestVoteAdmissionFilter(t *testing.T) {
	listed := newKeyPair(t, 0x71)
	stranger := newKeyPair(t, 0x72)
	fetcher := &fakeFetcher{blob: &unl.Blob{
		Sequence:   1,
		Validators: []unl.Entry{listEntry(listed, 1)},
	}}
	r, cap := newTestRegistry(t, fetcher, Options{RequireMasterKey: true})
	require.NoError(t, r.RefreshUNL(context.Background()))

	r.handleValidation(sampleValidation(stranger, "100"))
	require.Empty(t, cap.votes)

	r.handleValidation(sampleValidation(listed, "100"))
	require.Len(t, cap.votes, 1)
	require.Equal(t, listed.master, cap.votes[0].MasterKey)
	require.True(t, cap.votes[0].IsOnUNL)
	require.False(t, cap.votes[0].ReceivedAt.IsZero())
}

func TestVoteDeduplication(t *testing.T) {
	k := newKeyPair(t, 0x81)
	fetcher := &fakeFetcher{blob: &unl.Blob{
		Sequence:   1,
		Validators: []unl.Entry{listEntry(k, 1)},
	}}
	r, cap := newTestRegistry(t, fetcher, Options{})
	require.NoError(t, r.RefreshUNL(context.Background()))

	// identical vote via two connections: one delivery
	r.handleValidation(sampleValidation(k, "200"))
	r.handleValidation(sampleValidation(k, "200"))
	require.Len(t, cap.votes, 1)

	// a different ledger index is a different vote
	r.handleValidation(sampleValidation(k, "201"))
	require.Len(t, cap.votes, 2)

	// push the watermark far past the window, prune, and the old
	// fingerprint is legitimately forgotten
	late := sampleValidation(k, "300")
	late.SigningTime = 700000000 + 10*defaultDedupWindow
	r.handleValidation(late)
	require.Len(t, cap.votes, 3)

	r.mu.Lock()
	removed, _ := r.dedup.prune()
	r.mu.Unlock()
	require.Equal(t, 2, removed)

	r.handleValidation(sampleValidation(k, "200"))
	require.Len(t, cap.votes, 4)
}

func TestVoteWithoutMasterKeyAllowed(t *testing.T) {
	stranger := newKeyPair(t, 0x91)
	fetcher := &fakeFetcher{blob: &unl.Blob{Sequence: 1}}
	r, cap := newTestRegistry(t, fetcher, Options{})

	r.handleValidation(sampleValidation(stranger, "400"))
	require.Len(t, cap.votes, 1)
	require.Empty(t, cap.votes[0].MasterKey)
	require.False(t, cap.votes[0].IsOnUNL)
	// the name falls back to the signing key itself
	require.Equal(t, stranger.signing, cap.votes[0].Name)
}

func TestHandleStreamCloseInert(t *testing.T) {
	fetcher := &fakeFetcher{blob: &unl.Blob{Sequence: 1}}
	r, cap := newTestRegistry(t, fetcher, Options{})

	// a close for a stream that was never registered is inert
	r.handleStreamClose("wss://gone.example.net", nil)
	require.Empty(t, cap.closes)
}
