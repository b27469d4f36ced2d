package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemCategory is the closed set of auction item categories.
type ItemCategory string

const (
	CategoryFurniture    ItemCategory = "furniture"
	CategoryElectronics  ItemCategory = "electronics"
	CategoryAppliances   ItemCategory = "appliances"
	CategoryCollectibles ItemCategory = "collectibles"
	CategoryVehicles     ItemCategory = "vehicles"
	CategoryTools        ItemCategory = "tools"
	CategoryOther        ItemCategory = "other"
)

// Valid reports whether c is a known category.
func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryFurniture, CategoryElectronics, CategoryAppliances,
		CategoryCollectibles, CategoryVehicles, CategoryTools, CategoryOther:
		return true
	}
	return false
}

// ItemSubtype narrows a category (currently only furniture has subtypes).
type ItemSubtype string

const (
	SubtypeDiningTable ItemSubtype = "dining_table"
	SubtypeDiningChair ItemSubtype = "dining_chair"
	SubtypeSofa        ItemSubtype = "sofa"
	SubtypeBed         ItemSubtype = "bed"
	SubtypeDresser     ItemSubtype = "dresser"
	SubtypeDesk        ItemSubtype = "desk"
	SubtypeBookshelf   ItemSubtype = "bookshelf"
	SubtypeCabinet     ItemSubtype = "cabinet"
	SubtypeOther       ItemSubtype = "other"
)

// Valid reports whether s is a known subtype.
func (s ItemSubtype) Valid() bool {
	switch s {
	case SubtypeDiningTable, SubtypeDiningChair, SubtypeSofa, SubtypeBed,
		SubtypeDresser, SubtypeDesk, SubtypeBookshelf, SubtypeCabinet, SubtypeOther:
		return true
	}
	return false
}

// AuctionSource identifies which scraper observed a listing.
type AuctionSource string

const (
	SourceEstateSales    AuctionSource = "estatesales_net"
	SourceHiBid          AuctionSource = "hibid"
	SourceFloridaSurplus AuctionSource = "florida_surplus"
)

// Location is a pickup point for an item.
type Location struct {
	City  string   `json:"city"`
	State string   `json:"state"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
}

// HasCoordinates reports whether both coordinates are known.
func (l *Location) HasCoordinates() bool {
	return l != nil && l.Lat != nil && l.Lng != nil
}

// AuctionItem is the canonical representation of a listing, refreshed on
// every observation. Identity is the source plus the source-native id.
type AuctionItem struct {
	ItemID    string        `json:"item_id"`
	Source    AuctionSource `json:"source"`
	SourceURL string        `json:"source_url"`

	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    ItemCategory `json:"category"`
	Subtype     *ItemSubtype `json:"subtype,omitempty"`

	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	StartingPrice *decimal.Decimal `json:"starting_price,omitempty"`
	BuyNowPrice   *decimal.Decimal `json:"buy_now_price,omitempty"`

	ClosingAt      *time.Time `json:"closing_at,omitempty"`
	PickupLocation *Location  `json:"pickup_location,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// EffectivePrice returns the price used for matching: the current bid when
// known, otherwise the starting price. The second return is false when the
// listing has no price data at all.
func (i *AuctionItem) EffectivePrice() (decimal.Decimal, bool) {
	if i.CurrentPrice != nil {
		return *i.CurrentPrice, true
	}
	if i.StartingPrice != nil {
		return *i.StartingPrice, true
	}
	return decimal.Decimal{}, false
}

// Validate rejects malformed items before they reach scoring or storage.
func (i *AuctionItem) Validate() error {
	if i.ItemID == "" {
		return &ValidationError{Field: "item_id", Reason: "required"}
	}
	if i.Source == "" {
		return &ValidationError{Field: "source", Reason: "required"}
	}
	if i.Title == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if !i.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown category"}
	}
	if i.Subtype != nil && !i.Subtype.Valid() {
		return &ValidationError{Field: "subtype", Reason: "unknown subtype"}
	}
	for name, p := range map[string]*decimal.Decimal{
		"current_price":  i.CurrentPrice,
		"starting_price": i.StartingPrice,
		"buy_now_price":  i.BuyNowPrice,
	} {
		if p != nil && p.IsNegative() {
			return &ValidationError{Field: name, Reason: "must not be negative"}
		}
	}
	return nil
}
