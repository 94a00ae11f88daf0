package ledger

import (
	"time"
)

// Record is one link in the tamper-evidence chain for a record type. Each
// link commits to the previous link's chain hash, so rewriting any
// historical payload breaks every later link.
type Record struct {
	ID                 string         `json:"blockchain_record_id"`
	RecordType         string         `json:"record_type"`
	RecordID           string         `json:"record_id"`
	DataHash           string         `json:"data_hash"`
	PrevHash           string         `json:"previous_hash"`
	ChainHash          string         `json:"blockchain_hash"`
	TransactionHash    string         `json:"transaction_hash"`
	BlockNumber        int64          `json:"block_number"`
	VerificationStatus string         `json:"verification_status"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Verification states. A link is verified at write time; re-verification
// against the stored chain can later downgrade it.
const (
	StatusVerified = "verified"
	StatusBroken   = "chain_broken"
)

// genesisHash anchors the first link of every record type's chain.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"
