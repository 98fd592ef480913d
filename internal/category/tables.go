package category

// Static vendor-hint tables. Each maps a vendor-supplied code or label to an
// ordered list of candidate category names; candidates are resolved against
// the cache by exact name and the first existing one wins. Adding a vendor
// means adding entries here, not new types.

// sectorCategories maps card-issuer sector labels (Hebrew, as shipped by
// the vendors) to candidate category names.
var sectorCategories = map[string][]string{
	"מזון ומשקאות":     {"Groceries", "Food"},
	"מסעדות":           {"Dining", "Food"},
	"מסעדות וברים":     {"Dining", "Food"},
	"דלק":              {"Transportation"},
	"תחבורה":           {"Transportation"},
	"רכב":              {"Car", "Transportation"},
	"פארם":             {"Pharmacy", "Health"},
	"רפואה":            {"Health"},
	"ביגוד והנעלה":     {"Clothing", "Shopping"},
	"חשמל ואלקטרוניקה": {"Electronics", "Shopping"},
	"ריהוט ובית":       {"Home", "Shopping"},
	"תקשורת":           {"Utilities"},
	"ביטוח":            {"Insurance"},
	"פנאי ובילוי":      {"Entertainment"},
	"תיירות":           {"Travel"},
	"חינוך":            {"Education"},
}

// codeCategories maps issuer-assigned numeric category codes (rendered as
// decimal strings by Enrichment.CategoryHint) to candidate category names.
var codeCategories = map[string][]string{
	"1":  {"Groceries", "Food"},
	"5":  {"Dining", "Food"},
	"9":  {"Transportation"},
	"12": {"Car", "Transportation"},
	"18": {"Pharmacy", "Health"},
	"21": {"Health"},
	"27": {"Clothing", "Shopping"},
	"33": {"Electronics", "Shopping"},
	"41": {"Utilities"},
	"47": {"Insurance"},
	"52": {"Entertainment"},
	"58": {"Travel"},
}
