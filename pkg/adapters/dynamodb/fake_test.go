package dynamodb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

var (
	notExistsExpr = regexp.MustCompile(`^\(?attribute_not_exists\s*\((#\w+)\)\)?$`)
	equalExpr     = regexp.MustCompile(`^\(?(#\w+) = (:\w+)\)?$`)
	assignExpr    = regexp.MustCompile(`^(#\w+) = (:\w+)$`)
	beginsExpr    = regexp.MustCompile(`begins_with\s*\((#\w+), (:\w+)\)`)
)

// fakeTable is an in-memory table that understands the expressions the
// Gateway builds. Every call runs under one mutex, which gives the same
// item-level atomicity DynamoDB does.
type fakeTable struct {
	mu    sync.Mutex
	items map[string]map[string]item

	// beforeWrite runs inside the lock before a conditional write is evaluated.
	beforeWrite func(f *fakeTable)
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]item)}
}

func str(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func (f *fakeTable) get(k item) item {
	return f.items[str(k["PK"])][str(k["SK"])]
}

func (f *fakeTable) put(it item) {
	pk, sk := str(it["PK"]), str(it["SK"])
	if f.items[pk] == nil {
		f.items[pk] = make(map[string]item)
	}
	cp := make(item, len(it))
	for k, v := range it {
		cp[k] = v
	}
	f.items[pk][sk] = cp
}

func check(existing item, cond *string, names map[string]string, values item) (bool, error) {
	if cond == nil {
		return true, nil
	}
	c := strings.TrimSpace(*cond)
	if m := notExistsExpr.FindStringSubmatch(c); m != nil {
		if existing == nil {
			return true, nil
		}
		_, ok := existing[names[m[1]]]
		return !ok, nil
	}
	if m := equalExpr.FindStringSubmatch(c); m != nil {
		if existing == nil {
			return false, nil
		}
		return str(existing[names[m[1]]]) == str(values[m[2]]), nil
	}
	return false, fmt.Errorf("fake: unsupported condition %q", c)
}

func apply(existing item, update *string, names map[string]string, values item) (item, error) {
	u := strings.TrimSpace(aws.ToString(update))
	if !strings.HasPrefix(u, "SET ") {
		return nil, fmt.Errorf("fake: unsupported update %q", u)
	}
	out := make(item, len(existing))
	for k, v := range existing {
		out[k] = v
	}
	for _, part := range strings.Split(strings.TrimPrefix(u, "SET "), ",") {
		m := assignExpr.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("fake: unsupported assignment %q", part)
		}
		out[names[m[1]]] = values[m[2]]
	}
	return out, nil
}

func (f *fakeTable) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.get(in.Key)}, nil
}

func (f *fakeTable) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.ConditionExpression != nil && f.beforeWrite != nil {
		f.beforeWrite(f)
	}
	ok, err := check(f.get(in.Item), in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.put(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cond := aws.ToString(in.KeyConditionExpression)
	var pk, prefix string
	for _, m := range regexp.MustCompile(`(#\w+) = (:\w+)`).FindAllStringSubmatch(cond, -1) {
		if in.ExpressionAttributeNames[m[1]] == "PK" {
			pk = str(in.ExpressionAttributeValues[m[2]])
		}
	}
	if m := beginsExpr.FindStringSubmatch(cond); m != nil {
		prefix = str(in.ExpressionAttributeValues[m[2]])
	}
	if pk == "" {
		return nil, fmt.Errorf("fake: unsupported key condition %q", cond)
	}

	sks := make([]string, 0, len(f.items[pk]))
	for sk := range f.items[pk] {
		if strings.HasPrefix(sk, prefix) {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)
	out := &dynamodb.QueryOutput{Items: make([]item, 0, len(sks))}
	for _, sk := range sks {
		out.Items = append(out.Items, f.items[pk][sk])
	}
	return out, nil
}

func (f *fakeTable) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeWrite != nil {
		f.beforeWrite(f)
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	cancelled := false
	writes := make([]item, len(in.TransactItems))
	for i, ti := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		var (
			ok  bool
			err error
		)
		switch {
		case ti.Put != nil:
			ok, err = check(f.get(ti.Put.Item), ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues)
			writes[i] = ti.Put.Item
		case ti.Update != nil:
			existing := f.get(ti.Update.Key)
			ok, err = check(existing, ti.Update.ConditionExpression, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues)
			if err == nil && ok {
				if existing == nil {
					existing = ti.Update.Key
				}
				writes[i], err = apply(existing, ti.Update.UpdateExpression, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues)
			}
		default:
			err = fmt.Errorf("fake: unsupported transact item %d", i)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			cancelled = true
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		f.put(w)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
