// Package dynamodb implements ports.Gateway on a single DynamoDB table.
//
// Item layout:
//
//	PK = EVENT#<id>    SK = META            event row (fields as JSON, optimistic Version)
//	PK = EVENT#<id>    SK = CHALLENGE#0001  one row per challenge slot
//	PK = SESSION#<id>  SK = META            session checkpoint
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
)

const (
	metaSK          = "META"
	challengePrefix = "CHALLENGE#"
	defaultRetries  = 5
)

// ErrConflict is returned when an optimistic write keeps losing to concurrent writers.
var ErrConflict = errors.New("concurrent modification")

// API is the subset of the DynamoDB client used by the Gateway.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type eventItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	ID             string `dynamodbav:"ID"`
	OwnerID        string `dynamodbav:"OwnerID"`
	Status         string `dynamodbav:"Status"`
	BudgetCurrency string `dynamodbav:"BudgetCurrency"`
	Fields         string `dynamodbav:"Fields"`
	Version        int64  `dynamodbav:"Version"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UpdatedAt      string `dynamodbav:"UpdatedAt"`
}

type challengeItem struct {
	PK            string  `dynamodbav:"PK"`
	SK            string  `dynamodbav:"SK"`
	EventID       string  `dynamodbav:"EventID"`
	OrderIndex    int     `dynamodbav:"OrderIndex"`
	PrizeCurrency string  `dynamodbav:"PrizeCurrency"`
	Prize         float64 `dynamodbav:"Prize"`
	Fields        string  `dynamodbav:"Fields"`
	UpdatedAt     string  `dynamodbav:"UpdatedAt"`
}

type sessionItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ID        string `dynamodbav:"ID"`
	EventID   string `dynamodbav:"EventID"`
	OwnerID   string `dynamodbav:"OwnerID"`
	Phase     string `dynamodbav:"Phase"`
	Data      []byte `dynamodbav:"Data"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// Gateway implements ports.Gateway on DynamoDB.
type Gateway struct {
	client  API
	table   string
	retries int
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithRetries bounds the optimistic retry loop of parent and child writes.
func WithRetries(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.retries = n
		}
	}
}

// New creates a Gateway over the given table.
func New(client API, table string, opts ...Option) *Gateway {
	g := &Gateway{
		client:  client,
		table:   table,
		retries: defaultRetries,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func eventPK(id string) string   { return "EVENT#" + id }
func sessionPK(id string) string { return "SESSION#" + id }
func challengeSK(i int) string   { return fmt.Sprintf("%s%04d", challengePrefix, i) }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (g *Gateway) CreateDraft(ctx context.Context, event *domain.Event, session *domain.SessionRecord) error {
	fields, err := encodeFields(event.Fields)
	if err != nil {
		return err
	}
	ev := eventItem{
		PK:             eventPK(event.ID),
		SK:             metaSK,
		ID:             event.ID,
		OwnerID:        event.OwnerID,
		Status:         string(event.Status),
		BudgetCurrency: event.BudgetCurrency,
		Fields:         fields,
		Version:        1,
		CreatedAt:      formatTime(event.CreatedAt),
		UpdatedAt:      formatTime(event.UpdatedAt),
	}
	if ev.Status == "" {
		ev.Status = string(domain.EventDraft)
	}
	if ev.BudgetCurrency == "" {
		ev.BudgetCurrency = domain.BudgetCurrency
	}

	evMap, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	sessMap, err := attributevalue.MarshalMap(toSessionItem(session))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(expression.Name("PK").AttributeNotExists()).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = g.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                 aws.String(g.table),
				Item:                      evMap,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}},
			{Put: &types.Put{TableName: aws.String(g.table), Item: sessMap}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

func (g *Gateway) CommitParentFields(ctx context.Context, eventID string, fields domain.Fields) error {
	return g.retry(ctx, "commit parent", func() error {
		ev, err := g.loadMeta(ctx, eventID)
		if err != nil {
			return err
		}
		current, err := decodeFields(ev.Fields)
		if err != nil {
			return err
		}
		current.Merge(fields)
		if ev.Fields, err = encodeFields(current); err != nil {
			return err
		}
		prev := ev.Version
		ev.Version++
		ev.UpdatedAt = formatTime(g.now())

		item, err := attributevalue.MarshalMap(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		expr, err := expression.NewBuilder().
			WithCondition(expression.Name("Version").Equal(expression.Value(prev))).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build expression: %w", err)
		}
		_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(g.table),
			Item:                      item,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return err
	})
}

// UpsertChild writes the challenge and bumps the event Version in one
// transaction, so two writers racing on the same event cannot both pass
// the budget check.
func (g *Gateway) UpsertChild(ctx context.Context, eventID string, orderIndex int, fields domain.Fields) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	prize, _ := fields.Amount(domain.FieldPrizeAmount)

	return g.retry(ctx, "upsert child", func() error {
		ev, err := g.loadMeta(ctx, eventID)
		if err != nil {
			return err
		}
		parent, err := decodeFields(ev.Fields)
		if err != nil {
			return err
		}
		if budget, ok := parent.Amount(domain.FieldTotalBudget); ok {
			existing, err := g.queryChallenges(ctx, eventID)
			if err != nil {
				return err
			}
			var others float64
			for _, c := range existing {
				if c.OrderIndex != orderIndex {
					others += c.Prize
				}
			}
			if others+prize > budget {
				return domain.ErrBudgetExceeded
			}
		}

		item, err := attributevalue.MarshalMap(challengeItem{
			PK:            eventPK(eventID),
			SK:            challengeSK(orderIndex),
			EventID:       eventID,
			OrderIndex:    orderIndex,
			PrizeCurrency: domain.BudgetCurrency,
			Prize:         prize,
			Fields:        encoded,
			UpdatedAt:     formatTime(g.now()),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal challenge: %w", err)
		}
		expr, err := expression.NewBuilder().
			WithCondition(expression.Name("Version").Equal(expression.Value(ev.Version))).
			WithUpdate(expression.Set(expression.Name("Version"), expression.Value(ev.Version+1))).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build expression: %w", err)
		}

		_, err = g.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{
				{Put: &types.Put{TableName: aws.String(g.table), Item: item}},
				{Update: &types.Update{
					TableName:                 aws.String(g.table),
					Key:                       key(eventPK(eventID), metaSK),
					ConditionExpression:       expr.Condition(),
					UpdateExpression:          expr.Update(),
					ExpressionAttributeNames:  expr.Names(),
					ExpressionAttributeValues: expr.Values(),
				}},
			},
		})
		return err
	})
}

func (g *Gateway) SaveSession(ctx context.Context, session *domain.SessionRecord) error {
	item, err := attributevalue.MarshalMap(toSessionItem(session))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if _, err := g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (g *Gateway) LoadSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(g.table),
		Key:            key(sessionPK(sessionID), metaSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrSessionNotFound
	}
	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &domain.SessionRecord{
		ID:        item.ID,
		EventID:   item.EventID,
		OwnerID:   item.OwnerID,
		Phase:     domain.Phase(item.Phase),
		Data:      item.Data,
		UpdatedAt: parseTime(item.UpdatedAt),
	}, nil
}

func (g *Gateway) LoadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ev, err := g.loadMeta(ctx, eventID)
	if err != nil {
		return nil, err
	}
	fields, err := decodeFields(ev.Fields)
	if err != nil {
		return nil, err
	}
	items, err := g.queryChallenges(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out := &domain.Event{
		ID:             ev.ID,
		OwnerID:        ev.OwnerID,
		Status:         domain.EventStatus(ev.Status),
		BudgetCurrency: ev.BudgetCurrency,
		Fields:         fields,
		Challenges:     make([]domain.Challenge, 0, len(items)),
		CreatedAt:      parseTime(ev.CreatedAt),
		UpdatedAt:      parseTime(ev.UpdatedAt),
	}
	// Query returns items sorted by SK, and the zero padded SK sorts by index.
	for _, c := range items {
		cf, err := decodeFields(c.Fields)
		if err != nil {
			return nil, err
		}
		out.Challenges = append(out.Challenges, domain.Challenge{
			EventID:       c.EventID,
			OrderIndex:    c.OrderIndex,
			PrizeCurrency: c.PrizeCurrency,
			Fields:        cf,
			UpdatedAt:     parseTime(c.UpdatedAt),
		})
	}
	return out, nil
}

func (g *Gateway) loadMeta(ctx context.Context, eventID string) (*eventItem, error) {
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(g.table),
		Key:            key(eventPK(eventID), metaSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrEventNotFound
	}
	var ev eventItem
	if err := attributevalue.UnmarshalMap(out.Item, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &ev, nil
}

func (g *Gateway) queryChallenges(ctx context.Context, eventID string) ([]challengeItem, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(eventPK(eventID))).
		And(expression.Key("SK").BeginsWith(challengePrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyEx).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var (
		items []challengeItem
		start map[string]types.AttributeValue
	)
	for {
		out, err := g.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(g.table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query challenges: %w", err)
		}
		var page []challengeItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal challenges: %w", err)
		}
		items = append(items, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = out.LastEvaluatedKey
	}
}

// retry re-runs fn while it fails on a lost optimistic race.
func (g *Gateway) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !isConflict(err) {
			return err
		}
		if attempt >= g.retries {
			return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
		}
		g.logger.Debug("Optimistic write lost, retrying", "op", op, "attempt", attempt)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func isConflict(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ConditionalCheckFailedException", "TransactionConflictException":
		return true
	case "TransactionCanceledException":
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, r := range tce.CancellationReasons {
				if code := aws.ToString(r.Code); code == "ConditionalCheckFailed" || code == "TransactionConflict" {
					return true
				}
			}
		}
	}
	return false
}

func toSessionItem(s *domain.SessionRecord) sessionItem {
	return sessionItem{
		PK:        sessionPK(s.ID),
		SK:        metaSK,
		ID:        s.ID,
		EventID:   s.EventID,
		OwnerID:   s.OwnerID,
		Phase:     string(s.Phase),
		Data:      s.Data,
		UpdatedAt: formatTime(s.UpdatedAt),
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func encodeFields(f domain.Fields) (string, error) {
	b, err := json.Marshal(f.Provided())
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(b), nil
}

func decodeFields(raw string) (domain.Fields, error) {
	f := domain.Fields{}
	if raw == "" {
		return f, nil
	}
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return f, nil
}
