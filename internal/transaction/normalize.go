package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// rawStatusPending is the only raw status literal treated as pending.
// Every other value, including an empty one, normalizes to completed.
const rawStatusPending = "pending"

// unknownDescription replaces empty descriptions so that hashing and
// categorization always have a non-empty input.
const unknownDescription = "Unknown"

// RawInstallments mirrors the installment block of a vendor record.
type RawInstallments struct {
	Number int `json:"number"`
	Total  int `json:"total"`
}

// RawRecord is one transaction as produced by a vendor scrape, before
// normalization. Optional monetary fields are pointers so that absence can
// be told apart from zero.
type RawRecord struct {
	Identifier       string           `json:"identifier,omitempty"`
	Date             string           `json:"date"`
	ProcessedDate    string           `json:"processedDate,omitempty"`
	OriginalAmount   float64          `json:"originalAmount"`
	OriginalCurrency string           `json:"originalCurrency"`
	ChargedAmount    *float64         `json:"chargedAmount,omitempty"`
	ChargedCurrency  string           `json:"chargedCurrency,omitempty"`
	Description      string           `json:"description"`
	Memo             string           `json:"memo,omitempty"`
	Status           string           `json:"status"`
	Installments     *RawInstallments `json:"installments,omitempty"`
	Sector           string           `json:"sector,omitempty"`
	VoucherNumber    string           `json:"voucherNumber,omitempty"`
	CategoryCode     int              `json:"categoryCode,omitempty"`
	MerchantName     string           `json:"merchantName,omitempty"`
	MerchantCity     string           `json:"merchantCity,omitempty"`
	PlanName         string           `json:"planName,omitempty"`
}

// institutionKinds maps institution ids to the enrichment shape their
// records carry. Institutions not listed here fall back to SourceBank.
var institutionKinds = map[string]SourceKind{
	"hapoalim":     SourceBank,
	"leumi":        SourceBank,
	"discount":     SourceBank,
	"mizrahi":      SourceBank,
	"otsarHahayal": SourceBank,
	"beinleumi":    SourceBank,
	"isracard":     SourceCardSector,
	"amex":         SourceCardSector,
	"max":          SourceCardCoded,
	"visaCal":      SourceCardMerchant,
}

// KindForInstitution resolves the enrichment shape for an institution id.
func KindForInstitution(institutionID string) SourceKind {
	if kind, ok := institutionKinds[institutionID]; ok {
		return kind
	}

	return SourceBank
}

// dateLayouts are tried in order when coercing vendor date strings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateOnly,
	"02/01/2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dayOf(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// dayOf drops the time-of-day component some vendors attach to dates.
// Range filters and trend buckets treat dates at day granularity, so a
// record timestamped mid-day must not escape a range that ends on its day.
func dayOf(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// toCents converts a vendor float amount to integer cents, rounding half
// away from zero. Vendors report two decimal places; decimal arithmetic
// avoids float drift on the way in.
func toCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Normalize converts one raw vendor record into a canonical transaction for
// the given account. The returned transaction has no category; its hash is
// computed last, after all trimming and defaulting, so equal logical
// records always hash equally. An unparseable date fails the record.
func Normalize(raw RawRecord, institutionID string, accountID uuid.UUID, rawPayload string) (*Transaction, error) {
	date, err := parseDate(raw.Date)
	if err != nil {
		return nil, fmt.Errorf("normalizing date: %w", err)
	}

	processed := date

	if raw.ProcessedDate != "" {
		processed, err = parseDate(raw.ProcessedDate)
		if err != nil {
			return nil, fmt.Errorf("normalizing processed date: %w", err)
		}
	}

	description := strings.TrimSpace(raw.Description)
	if description == "" {
		description = unknownDescription
	}

	charged := toCents(raw.OriginalAmount)
	if raw.ChargedAmount != nil {
		charged = toCents(*raw.ChargedAmount)
	}

	chargedCurrency := raw.ChargedCurrency
	if chargedCurrency == "" {
		chargedCurrency = raw.OriginalCurrency
	}

	status := StatusCompleted
	if raw.Status == rawStatusPending {
		status = StatusPending
	}

	tx := &Transaction{
		AccountID:        accountID,
		Date:             date,
		ProcessedDate:    processed,
		OriginalAmount:   toCents(raw.OriginalAmount),
		OriginalCurrency: raw.OriginalCurrency,
		ChargedAmount:    charged,
		ChargedCurrency:  chargedCurrency,
		Description:      description,
		Memo:             strings.TrimSpace(raw.Memo),
		Status:           status,
		Identifier:       raw.Identifier,
		RawPayload:       rawPayload,
		Enrichment:       buildEnrichment(raw, KindForInstitution(institutionID)),
	}

	if raw.Installments != nil && raw.Installments.Total > 1 {
		tx.Installments = &Installments{
			Number: raw.Installments.Number,
			Total:  raw.Installments.Total,
		}
	}

	tx.Hash = tx.GenerateHash()

	return tx, nil
}

// buildEnrichment packs the vendor-specific raw fields into the enrichment
// shape selected by the source kind. Fields foreign to the kind are
// dropped rather than carried along.
func buildEnrichment(raw RawRecord, kind SourceKind) Enrichment {
	e := Enrichment{Kind: kind}

	switch kind {
	case SourceCardSector:
		e.Sector = strings.TrimSpace(raw.Sector)
		e.VoucherNumber = raw.VoucherNumber
	case SourceCardCoded:
		e.CategoryCode = raw.CategoryCode
	case SourceCardMerchant:
		e.MerchantName = strings.TrimSpace(raw.MerchantName)
		e.MerchantCity = strings.TrimSpace(raw.MerchantCity)
		e.PlanName = raw.PlanName
	}

	return e
}
