package storage

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ssargent/bookshelf/pkg/book"
)

const (
	dynamoBatchSize    = 25 // BatchWriteItem limit
	dynamoMaxAttempts  = 5
	dynamoRetryBackoff = 50 * time.Millisecond
)

// DynamoDBAPI is the subset of the DynamoDB client the backend uses.
type DynamoDBAPI interface {
	dynamodb.ScanAPIClient
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// bookItem is the table representation of a book, keyed by id.
type bookItem struct {
	ID     int     `dynamodbav:"id"`
	Title  string  `dynamodbav:"title"`
	Author string  `dynamodbav:"author"`
	Year   *int    `dynamodbav:"year,omitempty"`
	Genre  *string `dynamodbav:"genre,omitempty"`
	ISBN   *string `dynamodbav:"isbn,omitempty"`
}

func toItem(b book.Book) bookItem {
	return bookItem{ID: b.ID, Title: b.Title, Author: b.Author, Year: b.Year, Genre: b.Genre, ISBN: b.ISBN}
}

func (i bookItem) toBook() book.Book {
	return book.Book{ID: i.ID, Title: i.Title, Author: i.Author, Year: i.Year, Genre: i.Genre, ISBN: i.ISBN}
}

// DynamoDB stores one item per book in a table whose partition key is the
// numeric attribute "id".
type DynamoDB struct {
	client DynamoDBAPI
	table  string
	logger Logger
}

// NewDynamoDBClient builds a client from the default AWS credential chain.
// A non-empty endpoint overrides the service endpoint.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewDynamoDB creates the backend.
func NewDynamoDB(client DynamoDBAPI, table string, logger Logger) *DynamoDB {
	if logger == nil {
		logger = discardLogger{}
	}
	return &DynamoDB{client: client, table: table, logger: logger}
}

func (d *DynamoDB) scan(ctx context.Context, input *dynamodb.ScanInput, fn func(map[string]types.AttributeValue) error) error {
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range page.Items {
			if err := fn(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadAll scans the table and returns the books in id order.
func (d *DynamoDB) LoadAll(ctx context.Context) ([]book.Book, error) {
	books := []book.Book{}
	err := d.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(d.table)}, func(raw map[string]types.AttributeValue) error {
		var item bookItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return fmt.Errorf("unmarshal item: %w", err)
		}
		books = append(books, item.toBook())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", d.table, err)
	}

	slices.SortFunc(books, func(a, b book.Book) int { return a.ID - b.ID })
	return books, nil
}

// SaveAll puts every book and deletes items whose id is no longer in the
// collection. Writes are batched but not transactional.
func (d *DynamoDB) SaveAll(ctx context.Context, books []book.Book) error {
	keep := make(map[int]bool, len(books))
	requests := make([]types.WriteRequest, 0, len(books))
	for _, b := range books {
		item, err := attributevalue.MarshalMap(toItem(b))
		if err != nil {
			return fmt.Errorf("marshal book %d: %w", b.ID, err)
		}
		keep[b.ID] = true
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	stale, err := d.staleKeys(ctx, keep)
	if err != nil {
		return err
	}
	for _, key := range stale {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
	}

	for start := 0; start < len(requests); start += dynamoBatchSize {
		end := min(start+dynamoBatchSize, len(requests))
		if err := d.writeBatch(ctx, requests[start:end]); err != nil {
			return err
		}
	}

	d.logger.Debug("books written", "table", d.table, "books", len(books), "deleted", len(stale))
	return nil
}

func (d *DynamoDB) staleKeys(ctx context.Context, keep map[int]bool) ([]map[string]types.AttributeValue, error) {
	var stale []map[string]types.AttributeValue
	input := &dynamodb.ScanInput{
		TableName:            aws.String(d.table),
		ProjectionExpression: aws.String("#id"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	}

	err := d.scan(ctx, input, func(raw map[string]types.AttributeValue) error {
		n, ok := raw["id"].(*types.AttributeValueMemberN)
		if !ok {
			return fmt.Errorf("item without numeric id")
		}
		id, err := strconv.Atoi(n.Value)
		if err != nil {
			return fmt.Errorf("parse id %q: %w", n.Value, err)
		}
		if !keep[id] {
			stale = append(stale, map[string]types.AttributeValue{"id": n})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s keys: %w", d.table, err)
	}
	return stale, nil
}

// writeBatch sends one batch and resends unprocessed items with a linear backoff.
func (d *DynamoDB) writeBatch(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.table: requests}

	for attempt := 1; ; attempt++ {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch write %s: %w", d.table, err)
		}
		if len(out.UnprocessedItems[d.table]) == 0 {
			return nil
		}
		if attempt == dynamoMaxAttempts {
			return fmt.Errorf("batch write %s: %d items unprocessed after %d attempts", d.table, len(out.UnprocessedItems[d.table]), attempt)
		}

		pending = out.UnprocessedItems
		d.logger.Warn("retrying unprocessed items", "table", d.table, "items", len(pending[d.table]), "attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * dynamoRetryBackoff):
		}
	}
}

// Close is a no-op; the AWS client holds no closable resources.
func (d *DynamoDB) Close() error {
	return nil
}
