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
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

const (
	accountSK = "PROFILE"
	uniqueSK  = "UNIQUE"
)

type accountRecord struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	ID           string    `dynamodbav:"id"`
	FirstName    string    `dynamodbav:"first_name"`
	LastName     string    `dynamodbav:"last_name"`
	Email        string    `dynamodbav:"email"`
	Phone        string    `dynamodbav:"phone"`
	Age          *int      `dynamodbav:"age,omitempty"`
	PasswordHash string    `dynamodbav:"password_hash"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
}

// uniqueRecord reserves an email or phone for one account.
type uniqueRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	AccountID string `dynamodbav:"account_id"`
}

func accountPK(id string) string  { return "ACCOUNT#" + id }
func emailPK(email string) string { return "EMAIL#" + email }
func phonePK(phone string) string { return "PHONE#" + phone }

func toAccountRecord(a *domain.Account) accountRecord {
	return accountRecord{
		PK:           accountPK(a.ID),
		SK:           accountSK,
		ID:           a.ID,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Phone:        a.Phone,
		Age:          a.Age,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (r accountRecord) toDomain() domain.Account {
	return domain.Account{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		Age:          r.Age,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// AccountRepository stores accounts in a single table. Email and phone
// uniqueness is kept with marker items written in the same transaction as
// the profile.
type AccountRepository struct {
	client    DynamoAPI
	tableName string
}

func NewAccountRepository(client DynamoAPI, tableName string) *AccountRepository {
	return &AccountRepository{
		client:    client,
		tableName: tableName,
	}
}

func (r *AccountRepository) putUnique(pk, accountID string) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(uniqueRecord{PK: pk, SK: uniqueSK, AccountID: accountID})
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}}, nil
}

func (r *AccountRepository) deleteUnique(pk string) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName: aws.String(r.tableName),
		Key:       key(pk, uniqueSK),
	}}
}

func (r *AccountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	av, err := attributevalue.MarshalMap(toAccountRecord(account))
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	emailItem, err := r.putUnique(emailPK(account.Email), account.ID)
	if err != nil {
		return err
	}
	phoneItem, err := r.putUnique(phonePK(account.Phone), account.ID)
	if err != nil {
		return err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			emailItem,
			phoneItem,
		},
	})
	if err != nil {
		return createConflict(err, account.ID)
	}
	return nil
}

// createConflict maps a cancelled create transaction to the field that
// collided. Item order is profile, email, phone.
func createConflict(err error, id string) error {
	for _, i := range cancelledAt(err) {
		switch i {
		case 0:
			return domain.Conflictf("account %s already exists", id)
		case 1:
			return domain.Conflictf("email already registered")
		case 2:
			return domain.Conflictf("phone already registered")
		}
	}
	return fmt.Errorf("failed to create account: %w", err)
}

func (r *AccountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(accountPK(id), accountSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, domain.NotFound("user")
	}

	var rec accountRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	a := rec.toDomain()
	return &a, nil
}

func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(emailPK(domain.NormalizeEmail(email)), uniqueSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, domain.NotFound("user")
	}

	var marker uniqueRecord
	if err := attributevalue.UnmarshalMap(out.Item, &marker); err != nil {
		return nil, err
	}
	return r.GetAccount(ctx, marker.AccountID)
}

func (r *AccountRepository) GetAccounts(ctx context.Context, ids []string) (map[string]*domain.Account, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range distinct(ids) {
		keys = append(keys, key(accountPK(id), accountSK))
	}

	items, err := batchGet(ctx, r.client, r.tableName, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Account, len(items))
	for _, item := range items {
		var rec accountRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, err
		}
		a := rec.toDomain()
		out[a.ID] = &a
	}
	return out, nil
}

func (r *AccountRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	expr, err := buildFilter(expression.Name(attrSK).Equal(expression.Value(accountSK)))
	if err != nil {
		return nil, err
	}

	var records []accountRecord
	if err := scanAll(ctx, r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, &records); err != nil {
		return nil, err
	}

	out := make([]domain.Account, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateAccount rewrites the profile and moves the uniqueness markers when
// email or phone changed.
func (r *AccountRepository) UpdateAccount(ctx context.Context, account *domain.Account) error {
	current, err := r.GetAccount(ctx, account.ID)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(toAccountRecord(account))
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	tx := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}}}
	// which index in tx reserves which field
	reserved := map[int]string{}

	if current.Email != account.Email {
		put, err := r.putUnique(emailPK(account.Email), account.ID)
		if err != nil {
			return err
		}
		reserved[len(tx)] = "email"
		tx = append(tx, put, r.deleteUnique(emailPK(current.Email)))
	}
	if current.Phone != account.Phone {
		put, err := r.putUnique(phonePK(account.Phone), account.ID)
		if err != nil {
			return err
		}
		reserved[len(tx)] = "phone"
		tx = append(tx, put, r.deleteUnique(phonePK(current.Phone)))
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx})
	if err != nil {
		for _, i := range cancelledAt(err) {
			if i == 0 {
				return domain.NotFound("user")
			}
			if field, ok := reserved[i]; ok {
				return domain.Conflictf("%s already registered", field)
			}
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *AccountRepository) DeleteAccount(ctx context.Context, id string) error {
	current, err := r.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.tableName),
				Key:                 key(accountPK(id), accountSK),
				ConditionExpression: aws.String("attribute_exists(PK)"),
			}},
			r.deleteUnique(emailPK(current.Email)),
			r.deleteUnique(phonePK(current.Phone)),
		},
	})
	if err != nil {
		if len(cancelledAt(err)) > 0 {
			return domain.NotFound("user")
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
