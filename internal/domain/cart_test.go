package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shirt() Product {
	return Product{ID: "A", Title: "Shirt", ImageURL: "u", Price: 10}
}

func mug() Product {
	return Product{ID: "B", Title: "Mug", ImageURL: "https://img.example.com/mug.png", Price: 4.5}
}

// ============================================================================
// Collection.Add Tests
// ============================================================================

func TestAdd_EmptyCollection(t *testing.T) {
	got := Collection{}.Add(shirt())

	assert.Equal(t, Collection{{ID: "A", Title: "Shirt", ImageURL: "u", Price: 10, Quantity: 1}}, got)
}

func TestAdd_SameIDTwice(t *testing.T) {
	got := Collection{}.Add(shirt()).Add(shirt())

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Quantity)
}

func TestAdd_DistinctIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	var c Collection
	for _, id := range ids {
		c = c.Add(Product{ID: id})
	}

	require.Len(t, c, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, c[i].ID)
		assert.Equal(t, 1, c[i].Quantity)
	}
}

func TestAdd_ExistingKeepsPositionAndOthers(t *testing.T) {
	c := Collection{}.Add(shirt()).Add(mug())

	got := c.Add(shirt())

	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, 2, got[0].Quantity)
	assert.Equal(t, "B", got[1].ID)
	assert.Equal(t, 1, got[1].Quantity)
}

func TestAdd_ExistingKeepsStoredDescriptor(t *testing.T) {
	c := Collection{}.Add(shirt())

	got := c.Add(Product{ID: "A", Title: "Renamed", Price: 99})

	assert.Equal(t, "Shirt", got[0].Title)
	assert.Equal(t, 10.0, got[0].Price)
}

func TestAdd_DoesNotMutateReceiver(t *testing.T) {
	c := Collection{}.Add(shirt())

	_ = c.Add(shirt())
	_ = c.Add(mug())

	require.Len(t, c, 1)
	assert.Equal(t, 1, c[0].Quantity)
}

// ============================================================================
// Collection.Increment / Decrement Tests
// ============================================================================

func TestIncrement_OnlyMatchingItem(t *testing.T) {
	c := Collection{}.Add(shirt()).Add(mug())

	got, changed := c.Increment("B")

	assert.True(t, changed)
	assert.Equal(t, []string{"A", "B"}, []string{got[0].ID, got[1].ID})
	assert.Equal(t, 1, got[0].Quantity)
	assert.Equal(t, 2, got[1].Quantity)
}

func TestIncrement_UnknownID(t *testing.T) {
	c := Collection{}.Add(shirt())

	got, changed := c.Increment("missing")

	assert.False(t, changed)
	assert.Equal(t, c, got)
}

func TestDecrement_StopsAtZero(t *testing.T) {
	c := Collection{}.Add(shirt()).Add(shirt())

	c, changed := c.Decrement("A")
	assert.True(t, changed)
	c, changed = c.Decrement("A")
	assert.True(t, changed)
	c, changed = c.Decrement("A")
	assert.False(t, changed)

	require.Len(t, c, 1)
	assert.Equal(t, 0, c[0].Quantity)
}

func TestDecrement_UnknownID(t *testing.T) {
	c := Collection{}.Add(shirt())

	got, changed := c.Decrement("missing")

	assert.False(t, changed)
	assert.Equal(t, c, got)
}

func TestDecrement_DoesNotMutateReceiver(t *testing.T) {
	c := Collection{}.Add(shirt())

	_, _ = c.Decrement("A")

	assert.Equal(t, 1, c[0].Quantity)
}

// ============================================================================
// Lookup helpers
// ============================================================================

func TestFindItemIndex(t *testing.T) {
	c := Collection{{ID: "A"}, {ID: "B"}}

	assert.Equal(t, 0, c.FindItemIndex("A"))
	assert.Equal(t, 1, c.FindItemIndex("B"))
	assert.Equal(t, -1, c.FindItemIndex("C"))
	assert.Equal(t, -1, Collection(nil).FindItemIndex("A"))
}

func TestItemCount(t *testing.T) {
	c := Collection{{Quantity: 2}, {Quantity: 3}, {Quantity: 0}}

	assert.Equal(t, 5, c.ItemCount())
	assert.Equal(t, 0, Collection{}.ItemCount())
}

func TestClone_NilIsEmpty(t *testing.T) {
	got := Collection(nil).Clone()

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// ============================================================================
// Encode / Decode Tests
// ============================================================================

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := Collection{}.Add(shirt()).Add(mug()).Add(mug())
	c, _ = c.Decrement("A")

	raw, err := Encode(c)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestEncode_StoredFieldNames(t *testing.T) {
	raw, err := Encode(Collection{}.Add(shirt()))
	require.NoError(t, err)

	assert.JSONEq(t, `[{"id":"A","title":"Shirt","image_url":"u","price":10,"quantity":1}]`, raw)
}

func TestEncode_Nil(t *testing.T) {
	raw, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestDecode_EmptyAndNull(t *testing.T) {
	for _, raw := range []string{"", "   ", "null"} {
		got, err := Decode(raw)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	got, err := Decode("{{not-valid-json")

	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart items")
}

func TestDecode_RejectsInvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "duplicate ids",
			raw:  `[{"id":"A","quantity":1},{"id":"A","quantity":2}]`,
		},
		{
			name: "negative quantity",
			raw:  `[{"id":"A","quantity":-3}]`,
		},
		{
			name: "duplicate with negative quantity",
			raw:  `[{"id":"A","quantity":-3},{"id":"A","quantity":2}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)

			assert.Nil(t, got)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCollection)
		})
	}
}

func TestDecode_ZeroQuantityIsValid(t *testing.T) {
	got, err := Decode(`[{"id":"A","quantity":0},{"id":"B","quantity":2}]`)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Quantity)
}
