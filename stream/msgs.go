package stream

// Inbound units are tagged records: the type field selects the payload shape,
// an error field marks server-side failures for a previously sent command.
type envelope struct {
	Type   string `json:"type"`
	Error  string `json:"error"`
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

// subscribeRequest is the one outbound command this client sends.
type subscribeRequest struct {
	ID      uint64   `json:"id"`
	Command string   `json:"command"`
	Streams []string `json:"streams"`
}

// ValidationMessage is a validationReceived record. Fee voting fields are
// optional on the wire and kept as pointers. The ledger index arrives as a
// string and is carried through untouched.
type ValidationMessage struct {
	Flags               uint32   `json:"flags"`
	Full                bool     `json:"full"`
	LedgerHash          string   `json:"ledger_hash"`
	LedgerIndex         string   `json:"ledger_index"`
	SigningTime         uint64   `json:"signing_time"`
	ValidationPublicKey string   `json:"validation_public_key"`
	Signature           string   `json:"signature"`
	Amendments          []string `json:"amendments,omitempty"`
	BaseFee             *uint64  `json:"base_fee,omitempty"`
	LoadFee             *uint64  `json:"load_fee,omitempty"`
	ReserveBase         *uint64  `json:"reserve_base,omitempty"`
	ReserveInc          *uint64  `json:"reserve_inc,omitempty"`
}

// ManifestMessage is a manifestReceived record: a live signing key rotation.
type ManifestMessage struct {
	MasterKey       string `json:"master_key"`
	SigningKey      string `json:"signing_key"`
	Sequence        uint32 `json:"seq"`
	Signature       string `json:"signature"`
	MasterSignature string `json:"master_signature"`
}

const (
	msgTypeValidation = "validationReceived"
	msgTypeManifest   = "manifestReceived"
	msgTypeResponse   = "response"

	errUnknownStream = "unknownStream"
)
