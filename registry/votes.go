package registry

import (
	"context"
	"time"

	"github.com/xrplwatch/valtrack/monitoring/metrics"
	"github.com/xrplwatch/valtrack/stream"
)

// handleValidation admits, deduplicates and enriches one inbound vote.
func (r *Registry) handleValidation(msg *stream.ValidationMessage) {
	r.mu.Lock()
	masterKey, hasMaster := r.bySigningKey[msg.ValidationPublicKey]
	if r.opts.RequireMasterKey && !hasMaster {
		r.mu.Unlock()
		metrics.ReportValidation("filtered")
		return
	}

	fresh := r.dedup.observe(fingerprint(msg), msg.SigningTime)
	if !fresh {
		r.mu.Unlock()
		metrics.ReportValidation("duplicate")
		return
	}

	var onUNL bool
	if hasMaster {
		_, onUNL = r.identities[masterKey]
	}
	r.mu.Unlock()

	nameKey := masterKey
	if !hasMaster {
		nameKey = msg.ValidationPublicKey
	}

	vote := Vote{
		MasterKey:           masterKey,
		ValidationPublicKey: msg.ValidationPublicKey,
		LedgerHash:          msg.LedgerHash,
		LedgerIndex:         msg.LedgerIndex,
		SigningTime:         msg.SigningTime,
		Flags:               msg.Flags,
		Full:                msg.Full,
		Amendments:          msg.Amendments,
		BaseFee:             msg.BaseFee,
		LoadFee:             msg.LoadFee,
		ReserveBase:         msg.ReserveBase,
		ReserveInc:          msg.ReserveInc,
		Name:                r.resolver.Resolve(context.Background(), nameKey),
		IsOnUNL:             onUNL,
		ReceivedAt:          time.Now().UTC(),
	}

	metrics.ReportValidation("delivered")
	if r.cb.OnValidation != nil {
		r.cb.OnValidation(vote)
	}
}
