package sink

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// putItemAPI is the subset of *dynamodb.Client used by DynamoDBSink.
type putItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBSink exports queue elements as items of a DynamoDB table.
// Items have a string hash key "id" plus queue, payload and created_at.
type DynamoDBSink struct {
	client    putItemAPI
	tableName string
	closed    bool
	mu        sync.RWMutex
}

// NewDynamoDBSink creates a DynamoDB sink and checks that the table exists.
// endpoint overrides the service URL (e.g. LocalStack); static credentials
// are used when both keys are set.
func NewDynamoDBSink(region, tableName, endpoint, accessKeyID, secretAccessKey string) (*DynamoDBSink, error) {
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	client := dynamodb.NewFromConfig(cfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", tableName, err)
	}

	log.Printf("[DYNAMODB] Sink ready on table %s (region %s)", tableName, region)
	return newDynamoDBSink(client, tableName), nil
}

func newDynamoDBSink(client putItemAPI, tableName string) *DynamoDBSink {
	return &DynamoDBSink{client: client, tableName: tableName}
}

// Write stores one element taken from queue as a new item.
func (d *DynamoDBSink) Write(ctx context.Context, queue string, payload []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrSinkClosed
	}

	id := uuid.NewString()
	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"id":         &types.AttributeValueMemberS{Value: id},
			"queue":      &types.AttributeValueMemberS{Value: queue},
			"payload":    &types.AttributeValueMemberB{Value: payload},
			"created_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	}

	if _, err := d.client.PutItem(ctx, input); err != nil {
		log.Printf("[DYNAMODB] ERROR: Failed to put element %s from %s: %v", id, queue, err)
		return fmt.Errorf("failed to put item %s: %w", id, err)
	}
	log.Printf("[DYNAMODB] Stored element %s from %s (%d bytes)", id, queue, len(payload))
	return nil
}

// Close marks the sink closed. The AWS client holds no connections that
// need an explicit close.
func (d *DynamoDBSink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
