package models

import "time"

// ItemCategory classifies what kind of valuable entity an item is.
type ItemCategory string

const (
	CategoryCurrency  ItemCategory = "currency"
	CategoryCrypto    ItemCategory = "crypto"
	CategoryCommodity ItemCategory = "commodity"
	CategoryEquity    ItemCategory = "equity"
	CategoryIndex     ItemCategory = "index"
	CategoryBaseUnit  ItemCategory = "base_unit"
	CategoryOther     ItemCategory = "other"
)

// Item is a distinct valuable entity tracked by symbol. Identity (ID, Symbol)
// is immutable after creation; metadata may change. Items referenced by
// observations are never removed, only deactivated.
type Item struct {
	ID        int64        `json:"id"`
	Symbol    string       `json:"symbol"`
	Name      string       `json:"name,omitempty"`
	Category  ItemCategory `json:"category"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}
