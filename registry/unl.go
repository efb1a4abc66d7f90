package registry

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xrplwatch/valtrack/codec"
	"github.com/xrplwatch/valtrack/logging/fields"
	"github.com/xrplwatch/valtrack/monitoring/metrics"
	"github.com/xrplwatch/valtrack/stream"
)

// decodedEntry is one list entry after manifest and key decoding, before any
// registry mutation. The whole list is decoded up front so a malformed
// document fails the refresh without partial state.
type decodedEntry struct {
	masterKey  string
	signingKey string
	sequence   uint32
}

// RefreshUNL fetches the validator list and reconciles the identity table
// against it. A list sequence at or below the last accepted one is a silent
// no-op. Acceptance fully determines membership: identities absent from the
// new snapshot are dropped.
func (r *Registry) RefreshUNL(ctx context.Context) error {
	blob, err := r.fetcher.Fetch(ctx)
	if err != nil {
		metrics.ReportUNLRefresh("failed")
		return errors.Wrap(err, "could not fetch UNL")
	}

	entries := make([]decodedEntry, 0, len(blob.Validators))
	for _, v := range blob.Validators {
		entry, err := decodeEntry(v.ValidationPublicKey, v.Manifest)
		if err != nil {
			metrics.ReportUNLRefresh("failed")
			return errors.Wrapf(err, "could not decode list entry %s", v.ValidationPublicKey)
		}
		entries = append(entries, entry)
	}

	r.mu.Lock()
	if blob.Sequence <= r.listSequence {
		r.mu.Unlock()
		metrics.ReportUNLRefresh("stale")
		r.logger.Debug("ignoring stale validator list", fields.ListSequence(blob.Sequence))
		return nil
	}
	r.listSequence = blob.Sequence

	duringStartup := !r.bootstrapped && len(entries) > 0
	if duringStartup {
		r.bootstrapped = true
	}

	var updates []UnlData
	membership := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		membership[entry.masterKey] = struct{}{}
		if update, applied := r.applyLocked(entry.masterKey, entry.signingKey, entry.sequence, false); applied {
			update.IsDuringStartup = duringStartup
			updates = append(updates, update)
		}
	}

	var removed int
	for masterKey, identity := range r.identities {
		if _, listed := membership[masterKey]; !listed {
			delete(r.bySigningKey, identity.SigningKey)
			delete(r.identities, masterKey)
			removed++
		}
	}
	r.reportTrackedLocked()
	r.mu.Unlock()

	metrics.ReportUNLRefresh("accepted")
	r.logger.Info("validator list reconciled",
		fields.ListSequence(blob.Sequence),
		fields.Validators(len(entries)),
		zap.Int("updated", len(updates)),
		zap.Int("removed", removed))

	r.emit(ctx, updates)
	return nil
}

func decodeEntry(pubKeyHex, manifestB64 string) (decodedEntry, error) {
	masterKey, err := codec.EncodeNodePublicHex(pubKeyHex)
	if err != nil {
		return decodedEntry{}, errors.Wrap(err, "invalid validation public key")
	}
	manifest, err := codec.DecodeManifest(manifestB64)
	if err != nil {
		return decodedEntry{}, errors.Wrap(err, "invalid manifest")
	}
	signingKey, err := codec.EncodeNodePublic(manifest.SigningPubKey)
	if err != nil {
		return decodedEntry{}, errors.Wrap(err, "invalid signing key")
	}
	return decodedEntry{
		masterKey:  masterKey,
		signingKey: signingKey,
		sequence:   manifest.Sequence,
	}, nil
}

// handleManifest applies a live manifest rotation. Manifests for unknown
// identities are ignored: membership only ever comes from the list.
func (r *Registry) handleManifest(msg *stream.ManifestMessage) {
	r.mu.Lock()
	if _, known := r.identities[msg.MasterKey]; !known {
		r.mu.Unlock()
		r.logger.Debug("ignoring manifest for unknown identity", fields.MasterKey(msg.MasterKey))
		return
	}
	update, applied := r.applyLocked(msg.MasterKey, msg.SigningKey, msg.Sequence, true)
	r.mu.Unlock()

	if !applied {
		return
	}
	r.emit(context.Background(), []UnlData{update})
}

// applyLocked installs an identity update if its sequence is strictly newer.
// The inverse index is repointed in the same step: the retired signing key's
// entry is removed before the new one is installed. r.mu must be held.
func (r *Registry) applyLocked(masterKey, signingKey string, sequence uint32, fromStream bool) (UnlData, bool) {
	identity, exists := r.identities[masterKey]
	if exists && sequence <= identity.Sequence {
		return UnlData{}, false
	}

	if exists {
		delete(r.bySigningKey, identity.SigningKey)
		identity.SigningKey = signingKey
		identity.Sequence = sequence
	} else {
		r.identities[masterKey] = &Identity{
			MasterKey:  masterKey,
			SigningKey: signingKey,
			Sequence:   sequence,
		}
	}
	r.bySigningKey[signingKey] = masterKey
	metrics.ReportManifestApplied()

	return UnlData{
		PublicKey:             masterKey,
		SigningKey:            signingKey,
		Sequence:              sequence,
		IsNewValidator:        !exists,
		IsNewManifest:         true,
		IsFromManifestsStream: fromStream,
	}, true
}

// emit resolves display names outside the lock and forwards updates in order.
func (r *Registry) emit(ctx context.Context, updates []UnlData) {
	if r.cb.OnUnlData == nil {
		return
	}
	for _, update := range updates {
		update.Name = r.resolver.Resolve(ctx, update.PublicKey)
		r.cb.OnUnlData(update)
	}
}
