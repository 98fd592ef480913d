package category_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/yonatanw/ledgerscope/internal/category"
	"github.com/yonatanw/ledgerscope/internal/transaction"
)

var (
	transportationID = uuid.New()
	diningID         = uuid.New()
	groceriesID      = uuid.New()
	unknownID        = uuid.New()
)

func fixedCategories() []*category.Category {
	return []*category.Category{
		{ID: transportationID, Name: "Transportation", Keywords: []string{"gas station", "fuel", "paz"}},
		{ID: diningID, Name: "Dining", Keywords: []string{"restaurant", "cafe"}},
		{ID: groceriesID, Name: "Groceries", Keywords: []string{"super market", "shufersal"}},
		{ID: unknownID, Name: "Unknown"},
	}
}

func newEngine(t *testing.T, categories []*category.Category) *category.Engine {
	t.Helper()

	ctrl := gomock.NewController(t)

	repo := category.NewMockRepository(ctrl)
	repo.EXPECT().ListCategories(gomock.Any()).Return(categories, nil)

	engine, err := category.NewEngine(context.Background(), repo)
	require.NoError(t, err)

	return engine
}

func bankTx(description string) *transaction.Transaction {
	return &transaction.Transaction{
		Description: description,
		Enrichment:  transaction.Enrichment{Kind: transaction.SourceBank},
	}
}

func TestEngine_Categorize_Keyword(t *testing.T) {
	engine := newEngine(t, fixedCategories())

	type testCase struct {
		name   string
		tx     *transaction.Transaction
		wantID uuid.UUID
	}

	tests := []testCase{
		{
			name:   "CaseInsensitiveSubstring",
			tx:     bankTx("SUPERDEAL GAS STATION 123"),
			wantID: transportationID,
		},
		{
			name:   "PunctuationStripped",
			tx:     bankTx("Café*Restaurant TLV"),
			wantID: diningID,
		},
		{
			name:   "HebrewKeptDuringNormalization",
			tx:     bankTx("שופרסל דיל - shufersal"),
			wantID: groceriesID,
		},
		{
			name:   "NoMatchFallsBackToUnknown",
			tx:     bankTx("TOTALLY UNRELATED"),
			wantID: unknownID,
		},
		{
			name:   "PlaceholderDescriptionFallsBackToUnknown",
			tx:     bankTx("Unknown"),
			wantID: unknownID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantID, engine.Categorize(tt.tx))
		})
	}
}

func TestEngine_Categorize_VendorHint(t *testing.T) {
	engine := newEngine(t, fixedCategories())

	t.Run("SectorHintWinsOverKeywords", func(t *testing.T) {
		// The description matches a Transportation keyword, but the sector
		// hint takes precedence.
		tx := &transaction.Transaction{
			Description: "GAS STATION CAFE",
			Enrichment: transaction.Enrichment{
				Kind:   transaction.SourceCardSector,
				Sector: "מסעדות",
			},
		}

		assert.Equal(t, diningID, engine.Categorize(tx))
	})

	t.Run("CodedHint", func(t *testing.T) {
		tx := &transaction.Transaction{
			Description: "irrelevant",
			Enrichment: transaction.Enrichment{
				Kind:         transaction.SourceCardCoded,
				CategoryCode: 9,
			},
		}

		assert.Equal(t, transportationID, engine.Categorize(tx))
	})

	t.Run("SecondCandidateUsedWhenFirstMissing", func(t *testing.T) {
		// "מזון ומשקאות" maps to Groceries then Food; Food does not exist
		// in the cache, Groceries does.
		tx := &transaction.Transaction{
			Description: "irrelevant",
			Enrichment: transaction.Enrichment{
				Kind:   transaction.SourceCardSector,
				Sector: "מזון ומשקאות",
			},
		}

		assert.Equal(t, groceriesID, engine.Categorize(tx))
	})

	t.Run("HitWithNoExistingCandidatesFallsThrough", func(t *testing.T) {
		// "ביטוח" maps only to Insurance, which is not in the cache; the
		// keyword layer then matches the description.
		tx := &transaction.Transaction{
			Description: "PAZ FUEL",
			Enrichment: transaction.Enrichment{
				Kind:   transaction.SourceCardSector,
				Sector: "ביטוח",
			},
		}

		assert.Equal(t, transportationID, engine.Categorize(tx))
	})

	t.Run("UnmappedHintFallsThrough", func(t *testing.T) {
		tx := &transaction.Transaction{
			Description: "nothing matches",
			Enrichment: transaction.Enrichment{
				Kind:   transaction.SourceCardSector,
				Sector: "סקטור לא מוכר",
			},
		}

		assert.Equal(t, unknownID, engine.Categorize(tx))
	})
}

func TestEngine_Categorize_Total(t *testing.T) {
	// With no categories at all the engine lazily creates Unknown on first
	// load, so categorize still returns a valid id.
	ctrl := gomock.NewController(t)

	repo := category.NewMockRepository(ctrl)
	repo.EXPECT().ListCategories(gomock.Any()).Return(nil, nil)
	repo.EXPECT().
		CreateCategory(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *category.Category) error {
			assert.Equal(t, category.UnknownName, c.Name)
			return nil
		})

	engine, err := category.NewEngine(context.Background(), repo)
	require.NoError(t, err)

	got := engine.Categorize(bankTx("anything at all"))
	assert.NotEqual(t, uuid.Nil, got)
	assert.Equal(t, engine.UnknownID(), got)
}

func TestEngine_Suggest(t *testing.T) {
	engine := newEngine(t, fixedCategories())

	t.Run("TokenOverlapScoring", func(t *testing.T) {
		// Transportation keywords tokenize to [gas station fuel paz]; the
		// description covers gas, station and paz.
		got := engine.Suggest("PAZ GAS STATION HAIFA", 10)
		require.NotEmpty(t, got)

		assert.Equal(t, "Transportation", got[0].Name)
		assert.InDelta(t, 0.75, got[0].Score, 0.001)
	})

	t.Run("TruncatesToTopN", func(t *testing.T) {
		got := engine.Suggest("gas station restaurant super market", 1)
		assert.Len(t, got, 1)
	})

	t.Run("NoOverlapMeansNoSuggestions", func(t *testing.T) {
		assert.Empty(t, engine.Suggest("nothing relevant here", 5))
	})

	t.Run("SubstringIsNotEnough", func(t *testing.T) {
		// Token overlap, unlike Categorize, requires whole tokens.
		assert.Empty(t, engine.Suggest("gasstation", 5))
	})
}

func TestEngine_Mutations_ReloadCache(t *testing.T) {
	ctrl := gomock.NewController(t)

	repo := category.NewMockRepository(ctrl)
	repo.EXPECT().ListCategories(gomock.Any()).Return(fixedCategories(), nil)

	engine, err := category.NewEngine(context.Background(), repo)
	require.NoError(t, err)

	insuranceID := uuid.New()

	updated := append(fixedCategories(), &category.Category{
		ID:       insuranceID,
		Name:     "Insurance",
		Keywords: []string{"insurance", "ביטוח"},
	})

	repo.EXPECT().
		CreateCategory(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *category.Category) error {
			assert.Equal(t, "Insurance", c.Name)
			return nil
		})
	repo.EXPECT().ListCategories(gomock.Any()).Return(updated, nil)

	created, err := engine.Add(context.Background(), "Insurance", nil, []string{"insurance", "ביטוח"})
	require.NoError(t, err)
	assert.Equal(t, "Insurance", created.Name)

	// The new category is visible to categorize immediately.
	assert.Equal(t, insuranceID, engine.Categorize(bankTx("car insurance renewal")))

	// Updating keywords reloads as well.
	updated[0].Keywords = []string{"parking"}

	repo.EXPECT().UpdateKeywords(gomock.Any(), transportationID, []string{"parking"}).Return(nil)
	repo.EXPECT().ListCategories(gomock.Any()).Return(updated, nil)

	require.NoError(t, engine.UpdateKeywords(context.Background(), transportationID, []string{"parking"}))
	assert.Equal(t, transportationID, engine.Categorize(bankTx("AHUZOT PARKING")))
}

func TestEngine_Categories_CallerOwnsSlice(t *testing.T) {
	engine := newEngine(t, fixedCategories())

	got := engine.Categories()
	require.Len(t, got, 4)

	// Reordering or replacing entries in the returned slice must not leak
	// into the cached snapshot.
	got[0], got[1] = got[1], got[0]
	got[2] = nil

	fresh := engine.Categories()
	require.Len(t, fresh, 4)
	assert.Equal(t, "Transportation", fresh[0].Name)
	assert.Equal(t, "Dining", fresh[1].Name)
	assert.Equal(t, "Groceries", fresh[2].Name)
}
