package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("transaction not found")

// Status represents the settlement state of a transaction.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// SourceKind identifies which vendor family produced a transaction and
// therefore which enrichment fields are meaningful on it.
type SourceKind string

const (
	// SourceBank is the minimal shape used by checking accounts.
	SourceBank SourceKind = "bank"
	// SourceCardSector is used by card issuers that tag each charge with a
	// business-sector label and a voucher number.
	SourceCardSector SourceKind = "card_sector"
	// SourceCardCoded is used by issuers that ship their own numeric
	// category code per charge.
	SourceCardCoded SourceKind = "card_coded"
	// SourceCardMerchant is used by issuers that attach merchant metadata
	// and a payment-plan descriptor but no usable category signal.
	SourceCardMerchant SourceKind = "card_merchant"
)

// Enrichment carries the vendor-specific fields attached to a transaction
// beyond the canonical ones. Which fields are populated is determined by
// Kind; the zero value with Kind set is valid for vendors that attach
// nothing.
type Enrichment struct {
	Kind          SourceKind `json:"kind"`
	Sector        string     `json:"sector,omitempty"`
	VoucherNumber string     `json:"voucherNumber,omitempty"`
	CategoryCode  int        `json:"categoryCode,omitempty"`
	MerchantName  string     `json:"merchantName,omitempty"`
	MerchantCity  string     `json:"merchantCity,omitempty"`
	PlanName      string     `json:"planName,omitempty"`
}

// CategoryHint returns the vendor-supplied category signal for this
// enrichment, if the source kind carries one. Sector issuers hint with the
// sector label, coded issuers with the numeric code rendered as text.
func (e Enrichment) CategoryHint() (string, bool) {
	switch e.Kind {
	case SourceCardSector:
		if e.Sector != "" {
			return e.Sector, true
		}
	case SourceCardCoded:
		if e.CategoryCode != 0 {
			return fmt.Sprintf("%d", e.CategoryCode), true
		}
	}

	return "", false
}

// Installments describes one charge of a multi-payment purchase.
type Installments struct {
	Number int
	Total  int
}

// Transaction is the canonical, vendor-agnostic transaction record.
// Amounts are in cents; negative means an expense. Identity for
// deduplication is (AccountID, Hash). Everything except CategoryID is
// immutable after creation.
type Transaction struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	Hash             string
	Date             time.Time
	ProcessedDate    time.Time
	OriginalAmount   int64
	OriginalCurrency string
	ChargedAmount    int64
	ChargedCurrency  string
	Description      string
	Memo             string
	Status           Status
	Identifier       string
	Installments     *Installments
	CategoryID       *uuid.UUID
	RawPayload       string
	Enrichment       Enrichment
	CreatedAt        time.Time
}

// GenerateHash computes the content hash used for deduplication. It must be
// called after normalization so that trimming and defaulting cannot change
// the result between ingestions of the same logical transaction.
func (t *Transaction) GenerateHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s", t.Date.Format(time.DateOnly), t.ChargedAmount, t.Description)

	return hex.EncodeToString(h.Sum(nil))
}
