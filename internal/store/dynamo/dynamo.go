// Package dynamo implements store.DocumentStore on DynamoDB. One table
// per collection, documents keyed by pk = document id. Live
// subscriptions are poll-based: the table is re-read on an interval and
// a full snapshot is delivered whenever the contents change.
package dynamo

import (
	"context"
	"errors"
	"log"
	"os"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/skydrive/skydrive/internal/store"
)

// DefaultPollInterval is how often subscriptions re-read their table.
const DefaultPollInterval = 3 * time.Second

// Client is the subset of *dynamodb.Client methods used by Store.
type Client interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store is a DynamoDB-backed document store.
type Store struct {
	client       Client
	tablePrefix  string
	pollInterval time.Duration
}

// New creates a Store. The table for a collection is named
// "<prefix>-<collection>"; prefix defaults to the DRIVE_TABLE_PREFIX
// environment variable, falling back to "SkyDrive".
func New(client Client, tablePrefix string) *Store {
	if tablePrefix == "" {
		tablePrefix = os.Getenv("DRIVE_TABLE_PREFIX")
	}
	if tablePrefix == "" {
		tablePrefix = "SkyDrive"
	}
	return &Store{
		client:       client,
		tablePrefix:  tablePrefix,
		pollInterval: DefaultPollInterval,
	}
}

func (s *Store) tableName(collection string) *string {
	return aws.String(s.tablePrefix + "-" + collection)
}

// Create implements store.DocumentStore.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()

	item, err := attributevalue.MarshalMap(store.ResolveTimestamps(fields, time.Now()))
	if err != nil {
		return "", err
	}
	item["pk"] = &types.AttributeValueMemberS{Value: id}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: s.tableName(collection),
		Item:      item,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update implements store.DocumentStore.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	fields = store.ResolveTimestamps(fields, time.Now())

	expr := "SET "
	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	i := 0
	for k, v := range fields {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return err
		}
		nameKey := "#f" + strconv.Itoa(i)
		valueKey := ":v" + strconv.Itoa(i)
		if i > 0 {
			expr += ", "
		}
		expr += nameKey + " = " + valueKey
		names[nameKey] = k
		values[valueKey] = av
		i++
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: s.tableName(collection),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

// Delete implements store.DocumentStore. Deleting an absent document
// succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: s.tableName(collection),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: id},
		},
	})
	return err
}

// List implements store.DocumentStore. A full Scan is acceptable here:
// collections are per-deployment and small, and the subscription model
// re-reads whole collections by design.
func (s *Store) List(ctx context.Context, collection, orderField string, descending bool) ([]store.Document, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: s.tableName(collection),
	})
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}

	docs := make([]store.Document, 0, len(items))
	for _, fields := range items {
		id, _ := fields["pk"].(string)
		delete(fields, "pk")
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	sort.Slice(docs, func(i, j int) bool {
		if descending {
			return docLess(docs[j], docs[i], orderField)
		}
		return docLess(docs[i], docs[j], orderField)
	})
	return docs, nil
}

// docLess orders by the given field; timestamps unmarshal from DynamoDB
// as RFC3339 strings, which compare correctly lexicographically, with
// the document id as tie-break.
func docLess(a, b store.Document, orderField string) bool {
	sa, aok := a.Fields[orderField].(string)
	sb, bok := b.Fields[orderField].(string)
	if aok && bok && sa != sb {
		return sa < sb
	}
	if aok != bok {
		return !aok
	}
	return a.ID < b.ID
}

// Subscribe implements store.DocumentStore via polling.
func (s *Store) Subscribe(ctx context.Context, collection, orderField string, descending bool) (store.Subscription, error) {
	sub := &subscription{
		out:  make(chan store.Snapshot),
		done: make(chan struct{}),
	}
	go s.poll(ctx, sub, collection, orderField, descending)
	return sub, nil
}

func (s *Store) poll(ctx context.Context, sub *subscription, collection, orderField string, descending bool) {
	defer close(sub.out)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last []store.Document
	first := true
	for {
		docs, err := s.List(ctx, collection, orderField, descending)
		if err != nil {
			// Leave the last delivered state in place; the mirror keeps
			// rendering stale data rather than crashing the view.
			log.Printf("dynamo subscription: %s poll failed: %v", collection, err)
		} else if first || !reflect.DeepEqual(docs, last) {
			first = false
			last = docs
			select {
			case sub.out <- store.Snapshot{Collection: collection, Docs: docs}:
			case <-sub.done:
				return
			case <-ctx.Done():
				sub.setErr(ctx.Err())
				return
			}
		}

		select {
		case <-ticker.C:
		case <-sub.done:
			return
		case <-ctx.Done():
			sub.setErr(ctx.Err())
			return
		}
	}
}

type subscription struct {
	out  chan store.Snapshot
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func (sub *subscription) setErr(err error) {
	sub.mu.Lock()
	sub.err = err
	sub.mu.Unlock()
}

// Snapshots implements store.Subscription.
func (sub *subscription) Snapshots() <-chan store.Snapshot { return sub.out }

// Err implements store.Subscription.
func (sub *subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

// Cancel implements store.Subscription.
func (sub *subscription) Cancel() {
	sub.once.Do(func() { close(sub.done) })
}
