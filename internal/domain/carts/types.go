package carts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"kicks/internal/money"
)

// MaxLineQuantity is the most pairs a single cart line may hold. Adds and
// merges that would go past it are capped or rejected.
const MaxLineQuantity = 99

var (
	// ErrSync wraps every failed backend read or write. The in-memory cart is
	// unchanged when it is returned.
	ErrSync         = errors.New("cart sync failed")
	ErrLineNotFound = errors.New("cart line not found")
	ErrInvalidLine  = errors.New("invalid cart line")
)

// ProductKey identifies a catalog product. Clients may send it as a JSON
// string or number; it is always kept as a string.
type ProductKey string

func (k *ProductKey) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = ProductKey(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*k = ProductKey(n.String())
	return nil
}

type Variant struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

// LineKey is the identity of a cart line: one line per product, color and size.
type LineKey struct {
	ProductKey ProductKey `json:"product_key"`
	Color      string     `json:"color,omitempty"`
	Size       string     `json:"size,omitempty"`
}

type Line struct {
	ProductKey ProductKey `json:"product_key"`
	Variant    Variant    `json:"variant"`
	Quantity   int        `json:"quantity"`
	// UnitPriceDisplay is the price the shopper saw when adding the line.
	// Totals are always derived from it, never from a live catalog lookup.
	UnitPriceDisplay string `json:"unit_price_display"`
	Name             string `json:"name,omitempty"`
	Image            string `json:"image,omitempty"`
}

func (l Line) Key() LineKey {
	return LineKey{ProductKey: l.ProductKey, Color: l.Variant.Color, Size: l.Variant.Size}
}

func (l Line) UnitPrice() money.Amount {
	return money.Parse(l.UnitPriceDisplay)
}

func (l Line) Total() money.Amount {
	return l.UnitPrice().Mul(l.Quantity)
}

// Snapshot is the full content of one cart and wishlist.
type Snapshot struct {
	Lines    []Line       `json:"lines"`
	Wishlist []ProductKey `json:"wishlist"`
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Lines:    make([]Line, len(s.Lines)),
		Wishlist: make([]ProductKey, len(s.Wishlist)),
	}
	copy(out.Lines, s.Lines)
	copy(out.Wishlist, s.Wishlist)
	return out
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0 && len(s.Wishlist) == 0
}

type OpKind string

const (
	OpAddLine        OpKind = "add_line"
	OpSetQuantity    OpKind = "set_quantity"
	OpChangeVariant  OpKind = "change_variant"
	OpRemoveLines    OpKind = "remove_lines"
	OpClearCart      OpKind = "clear_cart"
	OpAddWishlist    OpKind = "add_wishlist"
	OpRemoveWishlist OpKind = "remove_wishlist"
	OpMerge          OpKind = "merge"
	OpReset          OpKind = "reset"
)

// Op describes one mutation so backends that persist incrementally know what
// changed. Backends that persist whole documents only need the next snapshot.
type Op struct {
	Kind OpKind
	// Key is the line the op targets.
	Key LineKey
	// Line is the incoming line for OpAddLine and the resulting line for
	// OpSetQuantity and OpChangeVariant.
	Line Line
	// AllVariants makes OpRemoveLines match on product only.
	AllVariants bool
	Product     ProductKey
	// Incoming is the snapshot folded in by OpMerge.
	Incoming Snapshot
}

func (o Op) touchesCart() bool {
	switch o.Kind {
	case OpAddWishlist, OpRemoveWishlist:
		return false
	}
	return true
}

func (o Op) touchesWishlist() bool {
	switch o.Kind {
	case OpAddWishlist, OpRemoveWishlist, OpMerge, OpReset:
		return true
	}
	return false
}

// Backend is where a cart lives: the guest's local document or the signed-in
// user's remote rows.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	// Commit persists op. next is the snapshot the Store computed; the
	// returned snapshot is what the backend now holds.
	Commit(ctx context.Context, op Op, next Snapshot) (Snapshot, error)
}

// Subtotal sums the captured unit price times quantity of every line.
func Subtotal(lines []Line) money.Amount {
	var total money.Amount
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
