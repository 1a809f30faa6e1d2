// Package mongodb implements the account, item and order repositories on
// MongoDB. Orders are single documents with embedded lines.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

const (
	accountsCollection = "accounts"
	itemsCollection    = "items"
	ordersCollection   = "orders"
)

type Store struct {
	client   *mongo.Client
	accounts *mongo.Collection
	items    *mongo.Collection
	orders   *mongo.Collection
}

// Connect dials uri and pings the primary before returning.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		accounts: db.Collection(accountsCollection),
		items:    db.Collection(itemsCollection),
		orders:   db.Collection(ordersCollection),
	}
}

// EnsureIndexes creates the unique email/phone indexes and the lookup
// indexes used by order listings.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetName("phone_unique")},
	}); err != nil {
		return fmt.Errorf("account indexes: %w", err)
	}

	if _, err := s.items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "seller_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("item indexes: %w", err)
	}

	if _, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "lines.seller_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("order indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// duplicateConflict names the unique field a duplicate-key error hit.
func duplicateConflict(err error, what, id string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "email_unique"):
		return domain.Conflictf("email already registered")
	case strings.Contains(msg, "phone_unique"):
		return domain.Conflictf("phone already registered")
	default:
		return domain.Conflictf("%s %s already exists", what, id)
	}
}

var (
	byCreatedAsc  = options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	byCreatedDesc = options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
)

// Accounts

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	if _, err := s.accounts.InsertOne(ctx, toAccountDoc(account)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateConflict(err, "account", account.ID)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc accountDoc
	if err := s.accounts.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user")
		}
		return nil, err
	}
	a := doc.toDomain()
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id})
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findAccount(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (s *Store) GetAccounts(ctx context.Context, ids []string) (map[string]*domain.Account, error) {
	if len(ids) == 0 {
		return map[string]*domain.Account{}, nil
	}
	var docs []accountDoc
	if err := findAll(ctx, s.accounts, bson.M{"_id": bson.M{"$in": ids}}, &docs); err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Account, len(docs))
	for _, d := range docs {
		a := d.toDomain()
		out[a.ID] = &a
	}
	return out, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var docs []accountDoc
	if err := findAll(ctx, s.accounts, bson.M{}, &docs, byCreatedAsc); err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *domain.Account) error {
	res, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": account.ID}, toAccountDoc(account))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateConflict(err, "account", account.ID)
		}
		return fmt.Errorf("replace account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("user")
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return deleteByID(ctx, s.accounts, id, "user")
}

// Items

func (s *Store) CreateItem(ctx context.Context, item *domain.CatalogItem) error {
	doc, err := toItemDoc(item)
	if err != nil {
		return err
	}
	if _, err := s.items.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateConflict(err, "item", item.ID)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	var doc itemDoc
	if err := s.items.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("item")
		}
		return nil, err
	}
	item, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItems(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
	if len(ids) == 0 {
		return map[string]*domain.CatalogItem{}, nil
	}
	var docs []itemDoc
	if err := findAll(ctx, s.items, bson.M{"_id": bson.M{"$in": ids}}, &docs); err != nil {
		return nil, err
	}
	out := make(map[string]*domain.CatalogItem, len(docs))
	for _, d := range docs {
		item, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out[item.ID] = &item
	}
	return out, nil
}

// searchFilter translates f into a query document. Text is matched as a
// literal, case-insensitive substring of name or description.
func searchFilter(f domain.ItemFilter) (bson.M, error) {
	filter := bson.M{}

	if f.Text != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Text), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}

	price := bson.M{}
	if f.MinPrice != nil {
		v, err := toDecimal128(*f.MinPrice)
		if err != nil {
			return nil, err
		}
		price["$gte"] = v
	}
	if f.MaxPrice != nil {
		v, err := toDecimal128(*f.MaxPrice)
		if err != nil {
			return nil, err
		}
		price["$lte"] = v
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	if f.Category != "" {
		filter["category"] = string(f.Category)
	}
	if f.ExcludeSeller != "" {
		filter["seller_id"] = bson.M{"$ne": f.ExcludeSeller}
	}
	return filter, nil
}

func (s *Store) SearchItems(ctx context.Context, f domain.ItemFilter) ([]domain.CatalogItem, error) {
	filter, err := searchFilter(f)
	if err != nil {
		return nil, err
	}

	var docs []itemDoc
	if err := findAll(ctx, s.items, filter, &docs, byCreatedAsc); err != nil {
		return nil, err
	}
	out := make([]domain.CatalogItem, 0, len(docs))
	for _, d := range docs {
		item, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Store) UpdateItem(ctx context.Context, item *domain.CatalogItem) error {
	doc, err := toItemDoc(item)
	if err != nil {
		return err
	}
	res, err := s.items.ReplaceOne(ctx, bson.M{"_id": item.ID}, doc)
	if err != nil {
		return fmt.Errorf("replace item: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("item")
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	return deleteByID(ctx, s.items, id, "item")
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	doc, err := toOrderDoc(order)
	if err != nil {
		return err
	}
	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateConflict(err, "order", order.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("order")
		}
		return nil, err
	}
	order, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) listOrders(ctx context.Context, filter bson.M) ([]domain.Order, error) {
	var docs []orderDoc
	if err := findAll(ctx, s.orders, filter, &docs, byCreatedDesc); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		order, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.listOrders(ctx, bson.M{})
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.listOrders(ctx, bson.M{"buyer_id": buyerID})
}

func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.listOrders(ctx, bson.M{"lines.seller_id": sellerID})
}

func (s *Store) UpdateOrder(ctx context.Context, order *domain.Order) error {
	res, err := s.orders.UpdateOne(ctx, bson.M{"_id": order.ID}, bson.M{"$set": bson.M{
		"shipping_address": order.ShippingAddress,
		"notes":            order.Notes,
		"updated_at":       order.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.NotFound("order")
	}
	return nil
}

// UpdateLineStatus changes exactly the matched line through the positional
// operator.
func (s *Store) UpdateLineStatus(ctx context.Context, orderID, lineID string, status domain.LineStatus, at time.Time) error {
	res, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": orderID, "lines.id": lineID},
		bson.M{"$set": bson.M{
			"lines.$.status":     string(status),
			"lines.$.updated_at": at,
		}},
	)
	if err != nil {
		return fmt.Errorf("update order line: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.orders.CountDocuments(ctx, bson.M{"_id": orderID})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("order")
	}
	return domain.NotFound("order line")
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	return deleteByID(ctx, s.orders, id, "order")
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, out *[]T, opts ...*options.FindOptions) error {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id, what string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(what)
	}
	return nil
}
