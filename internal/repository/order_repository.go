package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

const orderSK = "METADATA"

type orderLineRecord struct {
	ID        string        `dynamodbav:"id"`
	ItemID    string        `dynamodbav:"item_id"`
	Quantity  int           `dynamodbav:"quantity"`
	Price     dynamoDecimal `dynamodbav:"price"`
	SellerID  string        `dynamodbav:"seller_id"`
	Status    string        `dynamodbav:"status"`
	UpdatedAt time.Time     `dynamodbav:"updated_at"`
}

// orderRecord embeds its lines. seller_ids is a string set so seller
// listings can filter with contains().
type orderRecord struct {
	PK              string            `dynamodbav:"PK"`
	SK              string            `dynamodbav:"SK"`
	GSI1PK          string            `dynamodbav:"GSI1PK"`
	GSI1SK          string            `dynamodbav:"GSI1SK"`
	ID              string            `dynamodbav:"id"`
	BuyerID         string            `dynamodbav:"buyer_id"`
	SellerIDs       []string          `dynamodbav:"seller_ids,stringset,omitempty"`
	Lines           []orderLineRecord `dynamodbav:"lines"`
	TotalAmount     dynamoDecimal     `dynamodbav:"total_amount"`
	OTPHash         string            `dynamodbav:"otp_hash"`
	ShippingAddress string            `dynamodbav:"shipping_address"`
	Notes           string            `dynamodbav:"notes"`
	CreatedAt       time.Time         `dynamodbav:"created_at"`
	UpdatedAt       time.Time         `dynamodbav:"updated_at"`
}

func orderPK(id string) string { return fmt.Sprintf("ORDER#%s", id) }

func buyerGSI1PK(buyerID string) string { return fmt.Sprintf("USER#%s", buyerID) }

func toOrderRecord(o *domain.Order) orderRecord {
	lines := make([]orderLineRecord, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineRecord{
			ID:        l.ID,
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			Price:     dynamoDecimal{l.Price},
			SellerID:  l.SellerID,
			Status:    string(l.Status),
			UpdatedAt: l.UpdatedAt,
		})
	}

	return orderRecord{
		PK:              orderPK(o.ID),
		SK:              orderSK,
		GSI1PK:          buyerGSI1PK(o.BuyerID),
		GSI1SK:          fmt.Sprintf("ORDER#%s#%s", o.CreatedAt.UTC().Format(time.RFC3339Nano), o.ID),
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		SellerIDs:       o.SellerIDs(),
		Lines:           lines,
		TotalAmount:     dynamoDecimal{o.TotalAmount},
		OTPHash:         o.OTPHash,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (r orderRecord) toDomain() domain.Order {
	lines := make([]domain.OrderLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, domain.OrderLine{
			ID:        l.ID,
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			Price:     l.Price.Decimal,
			SellerID:  l.SellerID,
			Status:    domain.LineStatus(l.Status),
			UpdatedAt: l.UpdatedAt,
		})
	}

	return domain.Order{
		ID:              r.ID,
		BuyerID:         r.BuyerID,
		Lines:           lines,
		TotalAmount:     r.TotalAmount.Decimal,
		OTPHash:         r.OTPHash,
		ShippingAddress: r.ShippingAddress,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type OrderRepository struct {
	client    DynamoAPI
	tableName string
}

func NewOrderRepository(client DynamoAPI, tableName string) *OrderRepository {
	return &OrderRepository{
		client:    client,
		tableName: tableName,
	}
}

// CreateOrder writes the order and its lines as one item, so either all of
// it lands or none does.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	av, err := attributevalue.MarshalMap(toOrderRecord(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.Conflictf("order %s already exists", order.ID)
		}
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(orderPK(id), orderSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, domain.NotFound("order")
	}

	var rec orderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	order := rec.toDomain()
	return &order, nil
}

func (r *OrderRepository) scanOrders(ctx context.Context, cond expression.ConditionBuilder) ([]domain.Order, error) {
	expr, err := buildFilter(cond)
	if err != nil {
		return nil, err
	}

	var records []orderRecord
	if err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, &records); err != nil {
		return nil, err
	}
	return newestFirst(records), nil
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return r.scanOrders(ctx, expression.Name(attrSK).Equal(expression.Value(orderSK)))
}

// ListOrdersByBuyer queries GSI1, which is keyed by buyer and sorted by
// creation time.
func (r *OrderRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(attrGSI1PK).Equal(expression.Value(buyerGSI1PK(buyerID)))).
		Build()
	if err != nil {
		return nil, err
	}

	var records []orderRecord
	if err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}, &records); err != nil {
		return nil, err
	}
	return newestFirst(records), nil
}

func (r *OrderRepository) ListOrdersBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return r.scanOrders(ctx, expression.Name(attrSK).Equal(expression.Value(orderSK)).
		And(expression.Name("seller_ids").Contains(sellerID)))
}

func (r *OrderRepository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	update := expression.
		Set(expression.Name("shipping_address"), expression.Value(order.ShippingAddress)).
		Set(expression.Name("notes"), expression.Value(order.Notes)).
		Set(expression.Name("updated_at"), expression.Value(order.UpdatedAt))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(attrPK))).
		Build()
	if err != nil {
		return err
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key(orderPK(order.ID), orderSK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.NotFound("order")
		}
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// UpdateLineStatus sets the status of one embedded line. The write is
// guarded on the line id still sitting at the resolved list index.
func (r *OrderRepository) UpdateLineStatus(ctx context.Context, orderID, lineID string, status domain.LineStatus, at time.Time) error {
	order, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	idx := order.LineIndex(lineID)
	if idx < 0 {
		return domain.NotFound("order line")
	}

	path := fmt.Sprintf("lines[%d]", idx)
	update := expression.
		Set(expression.Name(path+".status"), expression.Value(string(status))).
		Set(expression.Name(path+".updated_at"), expression.Value(at))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name(path + ".id").Equal(expression.Value(lineID))).
		Build()
	if err != nil {
		return err
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key(orderPK(orderID), orderSK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.NotFound("order line")
		}
		return fmt.Errorf("failed to update order line: %w", err)
	}
	return nil
}

func (r *OrderRepository) DeleteOrder(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 key(orderPK(id), orderSK),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.NotFound("order")
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func newestFirst(records []orderRecord) []domain.Order {
	out := make([]domain.Order, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
