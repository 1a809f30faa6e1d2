package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

const itemSK = "METADATA"

// itemRecord keeps lower-cased copies of name and description so text
// search can run as a case-insensitive contains() filter.
type itemRecord struct {
	PK            string        `dynamodbav:"PK"`
	SK            string        `dynamodbav:"SK"`
	ID            string        `dynamodbav:"id"`
	Name          string        `dynamodbav:"name"`
	NameLC        string        `dynamodbav:"name_lc"`
	Description   string        `dynamodbav:"description"`
	DescriptionLC string        `dynamodbav:"description_lc"`
	Price         dynamoDecimal `dynamodbav:"price"`
	Category      string        `dynamodbav:"category"`
	Stock         int           `dynamodbav:"stock"`
	SellerID      string        `dynamodbav:"seller_id"`
	CreatedAt     time.Time     `dynamodbav:"created_at"`
	UpdatedAt     time.Time     `dynamodbav:"updated_at"`
}

func itemPK(id string) string { return "ITEM#" + id }

func toItemRecord(i *domain.CatalogItem) itemRecord {
	return itemRecord{
		PK:            itemPK(i.ID),
		SK:            itemSK,
		ID:            i.ID,
		Name:          i.Name,
		NameLC:        strings.ToLower(i.Name),
		Description:   i.Description,
		DescriptionLC: strings.ToLower(i.Description),
		Price:         dynamoDecimal{i.Price},
		Category:      string(i.Category),
		Stock:         i.Stock,
		SellerID:      i.SellerID,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func (r itemRecord) toDomain() domain.CatalogItem {
	return domain.CatalogItem{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price.Decimal,
		Category:    domain.Category(r.Category),
		Stock:       r.Stock,
		SellerID:    r.SellerID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type ItemRepository struct {
	client    DynamoAPI
	tableName string
}

func NewItemRepository(client DynamoAPI, tableName string) *ItemRepository {
	return &ItemRepository{
		client:    client,
		tableName: tableName,
	}
}

func (r *ItemRepository) put(ctx context.Context, item *domain.CatalogItem, condition string) error {
	av, err := attributevalue.MarshalMap(toItemRecord(item))
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String(condition),
	})
	return err
}

func (r *ItemRepository) CreateItem(ctx context.Context, item *domain.CatalogItem) error {
	if err := r.put(ctx, item, "attribute_not_exists(PK)"); err != nil {
		if isConditionFailed(err) {
			return domain.Conflictf("item %s already exists", item.ID)
		}
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(itemPK(id), itemSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, domain.NotFound("item")
	}

	var rec itemRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	item := rec.toDomain()
	return &item, nil
}

func (r *ItemRepository) GetItems(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range distinct(ids) {
		keys = append(keys, key(itemPK(id), itemSK))
	}

	items, err := batchGet(ctx, r.client, r.tableName, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.CatalogItem, len(items))
	for _, av := range items {
		var rec itemRecord
		if err := attributevalue.UnmarshalMap(av, &rec); err != nil {
			return nil, err
		}
		item := rec.toDomain()
		out[item.ID] = &item
	}
	return out, nil
}

// searchCondition translates f into a scan filter. Every bound is pushed to
// DynamoDB; prices compare as numbers.
func searchCondition(f domain.ItemFilter) expression.ConditionBuilder {
	cond := expression.Name(attrSK).Equal(expression.Value(itemSK))

	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		cond = cond.And(expression.Or(
			expression.Name("name_lc").Contains(needle),
			expression.Name("description_lc").Contains(needle),
		))
	}
	if f.MinPrice != nil {
		cond = cond.And(expression.Name("price").GreaterThanEqual(expression.Value(dynamoDecimal{*f.MinPrice})))
	}
	if f.MaxPrice != nil {
		cond = cond.And(expression.Name("price").LessThanEqual(expression.Value(dynamoDecimal{*f.MaxPrice})))
	}
	if f.Category != "" {
		cond = cond.And(expression.Name("category").Equal(expression.Value(string(f.Category))))
	}
	if f.ExcludeSeller != "" {
		cond = cond.And(expression.Name("seller_id").NotEqual(expression.Value(f.ExcludeSeller)))
	}
	return cond
}

func (r *ItemRepository) SearchItems(ctx context.Context, f domain.ItemFilter) ([]domain.CatalogItem, error) {
	expr, err := buildFilter(searchCondition(f))
	if err != nil {
		return nil, err
	}

	var records []itemRecord
	if err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, &records); err != nil {
		return nil, err
	}

	out := make([]domain.CatalogItem, 0, len(records))
	for _, rec := range records {
		item := rec.toDomain()
		// The scan filter only narrows what comes back; Matches applies the
		// same rules again so every store returns the same set.
		if f.Matches(&item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ItemRepository) UpdateItem(ctx context.Context, item *domain.CatalogItem) error {
	if err := r.put(ctx, item, "attribute_exists(PK)"); err != nil {
		if isConditionFailed(err) {
			return domain.NotFound("item")
		}
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

func (r *ItemRepository) DeleteItem(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 key(itemPK(id), itemSK),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.NotFound("item")
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}
