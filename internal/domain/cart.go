package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCollection is returned by Decode for stored items that break the
// cart invariants.
var ErrInvalidCollection = errors.New("invalid cart items")

// Item is one product line in the cart.
type Item struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Product describes an item before it is in the cart, i.e. without a quantity.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// WithQuantity returns the cart item for p holding quantity units.
func (p Product) WithQuantity(quantity int) Item {
	return Item{
		ID:       p.ID,
		Title:    p.Title,
		ImageURL: p.ImageURL,
		Price:    p.Price,
		Quantity: quantity,
	}
}

// Collection is the ordered list of cart items, unique by ID.
//
// Mutating methods never modify the receiver's backing array; they return a
// new Collection so previously handed-out snapshots stay stable.
type Collection []Item

// FindItemIndex returns the index of the item with the given ID, or -1.
func (c Collection) FindItemIndex(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// ItemCount returns the total number of units across all items.
func (c Collection) ItemCount() int {
	var count int
	for _, item := range c {
		count += item.Quantity
	}
	return count
}

// Clone returns a copy of c that shares no memory with it. A nil collection
// clones to an empty, non-nil one.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Add puts one unit of p in the cart. A product already present has its
// quantity increased in place; a new product is appended with quantity 1.
func (c Collection) Add(p Product) Collection {
	if i := c.FindItemIndex(p.ID); i >= 0 {
		out := c.Clone()
		out[i].Quantity++
		return out
	}

	out := make(Collection, len(c), len(c)+1)
	copy(out, c)
	return append(out, p.WithQuantity(1))
}

// Increment adds one unit to the item with the given ID. The boolean reports
// whether an item matched.
func (c Collection) Increment(id string) (Collection, bool) {
	i := c.FindItemIndex(id)
	if i < 0 {
		return c, false
	}
	out := c.Clone()
	out[i].Quantity++
	return out, true
}

// Decrement removes one unit from the item with the given ID. Quantities stop
// at zero and the item stays in the collection. The boolean reports whether
// the collection changed.
func (c Collection) Decrement(id string) (Collection, bool) {
	i := c.FindItemIndex(id)
	if i < 0 || c[i].Quantity < 1 {
		return c, false
	}
	out := c.Clone()
	out[i].Quantity--
	return out, true
}

// Encode serializes the collection to its stored JSON form.
func Encode(c Collection) (string, error) {
	if c == nil {
		c = Collection{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cart items: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored value. Empty input and JSON null decode to an empty
// collection. Duplicate IDs or negative quantities yield ErrInvalidCollection.
func Decode(raw string) (Collection, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return Collection{}, nil
	}

	var c Collection
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}
	if c == nil {
		c = Collection{}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c Collection) validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, item := range c {
		if item.Quantity < 0 {
			return fmt.Errorf("%w: item %q has quantity %d", ErrInvalidCollection, item.ID, item.Quantity)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate item %q", ErrInvalidCollection, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}
