package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

func TestDecimal128_PreservesPrecision(t *testing.T) {
	in := decimal.RequireFromString("1234567890.123456789")
	v, err := toDecimal128(in)
	require.NoError(t, err)

	out, err := fromDecimal128(v)
	require.NoError(t, err)
	assert.True(t, in.Equal(out), "got %s", out)
}

func TestOrderDoc_RoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	order := &domain.Order{
		ID:      "o1",
		BuyerID: "b1",
		Lines: []domain.OrderLine{
			{ID: "l1", ItemID: "i1", Quantity: 3, Price: decimal.RequireFromString("0.10"), SellerID: "s1", Status: domain.LineStatusPending, UpdatedAt: now},
		},
		TotalAmount: decimal.RequireFromString("0.30"),
		OTPHash:     "h",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc, err := toOrderDoc(order)
	require.NoError(t, err)
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var back orderDoc
	require.NoError(t, bson.Unmarshal(raw, &back))
	got, err := back.toDomain()
	require.NoError(t, err)

	assert.Equal(t, "o1", got.ID)
	assert.True(t, got.TotalAmount.Equal(order.TotalAmount))
	assert.True(t, got.Lines[0].Price.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, "h", got.OTPHash)
}

func TestSearchFilter(t *testing.T) {
	lo := decimal.NewFromInt(5)
	filter, err := searchFilter(domain.ItemFilter{Text: "a.b", MinPrice: &lo, Category: domain.CategoryToys, ExcludeSeller: "me"})
	require.NoError(t, err)

	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	pattern := or[0].(bson.M)["name"].(bson.M)
	assert.Equal(t, `a\.b`, pattern["$regex"], "text is matched literally")
	assert.Equal(t, "i", pattern["$options"])

	price := filter["price"].(bson.M)
	assert.Contains(t, price, "$gte")
	assert.NotContains(t, price, "$lte")
	assert.Equal(t, "Toys", filter["category"])
	assert.Equal(t, bson.M{"$ne": "me"}, filter["seller_id"])

	empty, err := searchFilter(domain.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestStore_Integration runs against a live server when MONGODB_TEST_URI is
// set, e.g. mongodb://localhost:27017.
func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx := context.Background()
	store, err := Connect(ctx, uri, "marketplace_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.accounts.Database().Drop(ctx)
		_ = store.Close(ctx)
	})
	require.NoError(t, store.EnsureIndexes(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.CreateAccount(ctx, &domain.Account{ID: "a1", Email: "a@example.com", Phone: "1", CreatedAt: now}))
	err = store.CreateAccount(ctx, &domain.Account{ID: "a2", Email: "a@example.com", Phone: "2", CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.EqualError(t, err, "email already registered")

	order := &domain.Order{
		ID:      "o1",
		BuyerID: "a1",
		Lines: []domain.OrderLine{
			{ID: "l1", ItemID: "i1", Quantity: 1, Price: decimal.NewFromInt(2), SellerID: "s1", Status: domain.LineStatusPending},
			{ID: "l2", ItemID: "i2", Quantity: 1, Price: decimal.NewFromInt(3), SellerID: "s2", Status: domain.LineStatusPending},
		},
		TotalAmount: decimal.NewFromInt(5),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.CreateOrder(ctx, order))

	require.NoError(t, store.UpdateLineStatus(ctx, "o1", "l2", domain.LineStatusShipped, now))
	got, err := store.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.LineStatusPending, got.Lines[0].Status)
	assert.Equal(t, domain.LineStatusShipped, got.Lines[1].Status)

	assert.ErrorIs(t, store.UpdateLineStatus(ctx, "o1", "nope", domain.LineStatusShipped, now), domain.ErrNotFound)

	bySeller, err := store.ListOrdersBySeller(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, bySeller, 1)

	require.NoError(t, store.DeleteOrder(ctx, "o1"))
	assert.ErrorIs(t, store.DeleteOrder(ctx, "o1"), domain.ErrNotFound)
}
