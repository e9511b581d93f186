package dictionary

import "github.com/tinoosan/expenses/internal/ledger"

type CategoryDef struct {
	Code  ledger.Category `json:"code"`
	Label string          `json:"label"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
}

var curated = map[ledger.Category]CategoryDef{
	ledger.CategoryFood:          {Code: ledger.CategoryFood, Label: "Food", Icon: "🍔", Color: "bg-orange-500"},
	ledger.CategoryTransport:     {Code: ledger.CategoryTransport, Label: "Transport", Icon: "🚗", Color: "bg-blue-500"},
	ledger.CategoryShopping:      {Code: ledger.CategoryShopping, Label: "Shopping", Icon: "🛍️", Color: "bg-purple-500"},
	ledger.CategoryBills:         {Code: ledger.CategoryBills, Label: "Bills", Icon: "📄", Color: "bg-red-500"},
	ledger.CategoryEntertainment: {Code: ledger.CategoryEntertainment, Label: "Entertainment", Icon: "🎬", Color: "bg-pink-500"},
	ledger.CategoryHealthcare:    {Code: ledger.CategoryHealthcare, Label: "Healthcare", Icon: "⚕️", Color: "bg-green-500"},
	ledger.CategoryOther:         {Code: ledger.CategoryOther, Label: "Other", Icon: "📌", Color: "bg-gray-500"},
}

// Categories returns every category in display order.
func Categories() []CategoryDef {
	out := make([]CategoryDef, 0, len(ledger.Categories))
	for _, c := range ledger.Categories {
		out = append(out, curated[c])
	}
	return out
}

// Lookup returns the definition for c. Unknown categories fall back to Other's icon and color.
func Lookup(c ledger.Category) (CategoryDef, bool) {
	def, ok := curated[c]
	if !ok {
		other := curated[ledger.CategoryOther]
		return CategoryDef{Code: c, Label: string(c), Icon: other.Icon, Color: other.Color}, false
	}
	return def, true
}
