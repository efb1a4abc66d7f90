package fields

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FieldAddress         = "address"
	FieldAmendment       = "amendment"
	FieldCloseCode       = "close_code"
	FieldConnectionID    = "connection_id"
	FieldCount           = "count"
	FieldDomain          = "domain"
	FieldDuration        = "duration"
	FieldEndpoint        = "endpoint"
	FieldLedgerHash      = "ledger_hash"
	FieldLedgerIndex     = "ledger_index"
	FieldListSequence    = "list_sequence"
	FieldMasterKey       = "master_key"
	FieldMessageType     = "msg_type"
	FieldName            = "name"
	FieldNetwork         = "network"
	FieldPhase           = "phase"
	FieldRequestID       = "request_id"
	FieldSequence        = "sequence"
	FieldSigningKey      = "signing_key"
	FieldSigningTime     = "signing_time"
	FieldValidators      = "validators"
	FieldWatermark       = "watermark"
)

func Address(val string) zapcore.Field {
	return zap.String(FieldAddress, val)
}

func Amendment(val string) zapcore.Field {
	return zap.String(FieldAmendment, val)
}

func CloseCode(val int) zapcore.Field {
	return zap.Int(FieldCloseCode, val)
}

func ConnectionID(val string) zapcore.Field {
	return zap.String(FieldConnectionID, val)
}

func Count(val int) zapcore.Field {
	return zap.Int(FieldCount, val)
}

func Domain(val string) zapcore.Field {
	return zap.String(FieldDomain, val)
}

func Duration(val time.Duration) zapcore.Field {
	return zap.Duration(FieldDuration, val)
}

func Endpoint(val string) zapcore.Field {
	return zap.String(FieldEndpoint, val)
}

func LedgerHash(val string) zapcore.Field {
	return zap.String(FieldLedgerHash, val)
}

func LedgerIndex(val string) zapcore.Field {
	return zap.String(FieldLedgerIndex, val)
}

func ListSequence(val uint32) zapcore.Field {
	return zap.Uint32(FieldListSequence, val)
}

func MasterKey(val string) zapcore.Field {
	return zap.String(FieldMasterKey, val)
}

func MessageType(val string) zapcore.Field {
	return zap.String(FieldMessageType, val)
}

func Name(val string) zapcore.Field {
	return zap.String(FieldName, val)
}

func Network(val string) zapcore.Field {
	return zap.String(FieldNetwork, val)
}

func Phase(val string) zapcore.Field {
	return zap.String(FieldPhase, val)
}

func RequestID(val uint64) zapcore.Field {
	return zap.Uint64(FieldRequestID, val)
}

func Sequence(val uint32) zapcore.Field {
	return zap.Uint32(FieldSequence, val)
}

func SigningKey(val string) zapcore.Field {
	return zap.String(FieldSigningKey, val)
}

func SigningTime(val uint64) zapcore.Field {
	return zap.Uint64(FieldSigningTime, val)
}

func Validators(val int) zapcore.Field {
	return zap.Int(FieldValidators, val)
}

func Watermark(val uint64) zapcore.Field {
	return zap.Uint64(FieldWatermark, val)
}
