package transaction_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonatanw/ledgerscope/internal/transaction"
)

func validRaw() transaction.RawRecord {
	return transaction.RawRecord{
		Date:             "2024-03-15T00:00:00Z",
		OriginalAmount:   -120.50,
		OriginalCurrency: "ILS",
		Description:      "  SUPER MARKET  ",
		Status:           "completed",
	}
}

func TestNormalize(t *testing.T) {
	accountID := uuid.New()

	t.Run("CanonicalFields", func(t *testing.T) {
		tx, err := transaction.Normalize(validRaw(), "leumi", accountID, `{"raw":true}`)
		require.NoError(t, err)

		assert.Equal(t, accountID, tx.AccountID)
		assert.Equal(t, "SUPER MARKET", tx.Description)
		assert.Equal(t, int64(-12050), tx.OriginalAmount)
		assert.Equal(t, int64(-12050), tx.ChargedAmount)
		assert.Equal(t, "ILS", tx.ChargedCurrency)
		assert.Equal(t, transaction.StatusCompleted, tx.Status)
		assert.Equal(t, transaction.SourceBank, tx.Enrichment.Kind)
		assert.Equal(t, `{"raw":true}`, tx.RawPayload)
		assert.NotEmpty(t, tx.Hash)
		assert.Nil(t, tx.CategoryID)
	})

	t.Run("DateOnlyString", func(t *testing.T) {
		raw := validRaw()
		raw.Date = "2024-03-15"

		tx, err := transaction.Normalize(raw, "leumi", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, 2024, tx.Date.Year())
	})

	t.Run("TimeOfDayDropped", func(t *testing.T) {
		timestamped := validRaw()
		timestamped.Date = "2024-01-31T15:04:05Z"
		timestamped.ProcessedDate = "2024-02-02T09:30:00Z"

		tx, err := transaction.Normalize(timestamped, "leumi", accountID, "")
		require.NoError(t, err)

		// A mid-day scrape must land on the same instant as a date-only
		// record, or a range ending 2024-01-31 would exclude it.
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), tx.Date)
		assert.Equal(t, time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), tx.ProcessedDate)

		dateOnly := validRaw()
		dateOnly.Date = "2024-01-31"

		other, err := transaction.Normalize(dateOnly, "leumi", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, other.Hash, tx.Hash)
	})

	t.Run("InvalidDateFails", func(t *testing.T) {
		raw := validRaw()
		raw.Date = "not a date"

		_, err := transaction.Normalize(raw, "leumi", accountID, "")
		assert.Error(t, err)
	})

	t.Run("MissingDateFails", func(t *testing.T) {
		raw := validRaw()
		raw.Date = ""

		_, err := transaction.Normalize(raw, "leumi", accountID, "")
		assert.Error(t, err)
	})

	t.Run("EmptyDescriptionBecomesUnknown", func(t *testing.T) {
		raw := validRaw()
		raw.Description = "   "

		tx, err := transaction.Normalize(raw, "leumi", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, "Unknown", tx.Description)
	})

	t.Run("ChargedDefaultsToOriginal", func(t *testing.T) {
		charged := -30.0

		raw := validRaw()
		raw.ChargedAmount = &charged
		raw.ChargedCurrency = "USD"

		tx, err := transaction.Normalize(raw, "leumi", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, int64(-3000), tx.ChargedAmount)
		assert.Equal(t, "USD", tx.ChargedCurrency)
	})

	t.Run("PendingStatusLiteral", func(t *testing.T) {
		for rawStatus, want := range map[string]transaction.Status{
			"pending":   transaction.StatusPending,
			"completed": transaction.StatusCompleted,
			"Pending":   transaction.StatusCompleted,
			"":          transaction.StatusCompleted,
			"weird":     transaction.StatusCompleted,
		} {
			raw := validRaw()
			raw.Status = rawStatus

			tx, err := transaction.Normalize(raw, "leumi", accountID, "")
			require.NoError(t, err)
			assert.Equal(t, want, tx.Status, "raw status %q", rawStatus)
		}
	})

	t.Run("InstallmentsKeptOnlyWhenMultiple", func(t *testing.T) {
		raw := validRaw()
		raw.Installments = &transaction.RawInstallments{Number: 1, Total: 1}

		tx, err := transaction.Normalize(raw, "leumi", accountID, "")
		require.NoError(t, err)
		assert.Nil(t, tx.Installments)

		raw.Installments = &transaction.RawInstallments{Number: 2, Total: 6}

		tx, err = transaction.Normalize(raw, "leumi", accountID, "")
		require.NoError(t, err)
		require.NotNil(t, tx.Installments)
		assert.Equal(t, 2, tx.Installments.Number)
		assert.Equal(t, 6, tx.Installments.Total)
	})
}

func TestNormalize_Enrichment(t *testing.T) {
	accountID := uuid.New()

	t.Run("SectorIssuer", func(t *testing.T) {
		raw := validRaw()
		raw.Sector = "מסעדות"
		raw.VoucherNumber = "123456"
		raw.MerchantName = "dropped for this kind"

		tx, err := transaction.Normalize(raw, "isracard", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, transaction.SourceCardSector, tx.Enrichment.Kind)
		assert.Equal(t, "מסעדות", tx.Enrichment.Sector)
		assert.Equal(t, "123456", tx.Enrichment.VoucherNumber)
		assert.Empty(t, tx.Enrichment.MerchantName)

		hint, ok := tx.Enrichment.CategoryHint()
		assert.True(t, ok)
		assert.Equal(t, "מסעדות", hint)
	})

	t.Run("CodedIssuer", func(t *testing.T) {
		raw := validRaw()
		raw.CategoryCode = 41

		tx, err := transaction.Normalize(raw, "max", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, transaction.SourceCardCoded, tx.Enrichment.Kind)

		hint, ok := tx.Enrichment.CategoryHint()
		assert.True(t, ok)
		assert.Equal(t, "41", hint)
	})

	t.Run("MerchantIssuerHasNoHint", func(t *testing.T) {
		raw := validRaw()
		raw.MerchantName = "Some Store"
		raw.MerchantCity = "Tel Aviv"

		tx, err := transaction.Normalize(raw, "visaCal", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, transaction.SourceCardMerchant, tx.Enrichment.Kind)
		assert.Equal(t, "Some Store", tx.Enrichment.MerchantName)

		_, ok := tx.Enrichment.CategoryHint()
		assert.False(t, ok)
	})

	t.Run("UnknownInstitutionFallsBackToBank", func(t *testing.T) {
		tx, err := transaction.Normalize(validRaw(), "some-new-bank", accountID, "")
		require.NoError(t, err)
		assert.Equal(t, transaction.SourceBank, tx.Enrichment.Kind)

		_, ok := tx.Enrichment.CategoryHint()
		assert.False(t, ok)
	})
}

func TestGenerateHash(t *testing.T) {
	accountID := uuid.New()

	t.Run("StableAcrossReingestion", func(t *testing.T) {
		a, err := transaction.Normalize(validRaw(), "leumi", accountID, "payload-a")
		require.NoError(t, err)

		b, err := transaction.Normalize(validRaw(), "leumi", uuid.New(), "payload-b")
		require.NoError(t, err)

		// Account, raw payload and vendor do not participate in the hash.
		assert.Equal(t, a.Hash, b.Hash)
	})

	t.Run("StableAcrossVendors", func(t *testing.T) {
		a, err := transaction.Normalize(validRaw(), "leumi", accountID, "")
		require.NoError(t, err)

		b, err := transaction.Normalize(validRaw(), "isracard", accountID, "")
		require.NoError(t, err)

		assert.Equal(t, a.Hash, b.Hash)
	})

	t.Run("TrimHappensBeforeHashing", func(t *testing.T) {
		trimmed := validRaw()
		trimmed.Description = "SUPER MARKET"

		padded := validRaw()
		padded.Description = "   SUPER MARKET   "

		a, err := transaction.Normalize(trimmed, "leumi", accountID, "")
		require.NoError(t, err)

		b, err := transaction.Normalize(padded, "leumi", accountID, "")
		require.NoError(t, err)

		assert.Equal(t, a.Hash, b.Hash)
	})

	t.Run("DiffersPerComponent", func(t *testing.T) {
		base, err := transaction.Normalize(validRaw(), "leumi", accountID, "")
		require.NoError(t, err)

		byDate := validRaw()
		byDate.Date = "2024-03-16T00:00:00Z"

		byAmount := validRaw()
		byAmount.OriginalAmount = -120.51

		byDesc := validRaw()
		byDesc.Description = "SUPER MARKET 2"

		for name, raw := range map[string]transaction.RawRecord{
			"date":        byDate,
			"amount":      byAmount,
			"description": byDesc,
		} {
			other, err := transaction.Normalize(raw, "leumi", accountID, "")
			require.NoError(t, err)
			assert.NotEqual(t, base.Hash, other.Hash, "changing %s must change the hash", name)
		}
	})
}
