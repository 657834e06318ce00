package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// DynamoDBStore implements Store on a single DynamoDB table keyed by "Key"
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	prefix string
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, prefix string, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// LoadDefaultConfig queries the EC2 IMDS endpoint, which hangs when
		// static local credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		prefix: prefix,
		logger: logger.With().Str("component", "storage").Str("backend", "dynamodb").Logger(),
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTableIfNotExist(ctx, client, cfg.Table, store.logger); err != nil {
			return nil, err
		}
	}

	store.logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.Table).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoDBStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k, err := attributevalue.Marshal(s.prefix + key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal key: %w", err)
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            map[string]dbtypes.AttributeValue{"Key": k},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(result.Item) == 0 {
		return nil, false, nil
	}

	var item types.KVItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return []byte(item.Value), true, nil
}

func (s *DynamoDBStore) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(types.KVItem{
		Key:       s.prefix + key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.Table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Clear deletes every item whose key starts with the prefix (scan + batch delete)
func (s *DynamoDBStore) Clear(ctx context.Context) error {
	filter := expression.Name("Key").BeginsWith(s.prefix)
	expr, err := expression.NewBuilder().
		WithFilter(filter).
		WithProjection(expression.NamesList(expression.Name("Key"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	var lastKey map[string]dbtypes.AttributeValue
	deleted := 0

	for {
		input := &dynamodb.ScanInput{
			TableName:                 aws.String(s.config.Table),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			Limit:                     aws.Int32(500),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", s.config.Table, err)
		}

		// Batch delete in groups of 25
		for i := 0; i < len(result.Items); i += 25 {
			end := i + 25
			if end > len(result.Items) {
				end = len(result.Items)
			}

			requests := make([]dbtypes.WriteRequest, 0, end-i)
			for _, item := range result.Items[i:end] {
				requests = append(requests, dbtypes.WriteRequest{
					DeleteRequest: &dbtypes.DeleteRequest{
						Key: map[string]dbtypes.AttributeValue{"Key": item["Key"]},
					},
				})
			}

			_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dbtypes.WriteRequest{
					s.config.Table: requests,
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete batch: %w", err)
			}
			deleted += len(requests)
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	s.logger.Info().Int("items", deleted).Msg("namespace cleared")
	return nil
}

func (s *DynamoDBStore) Close() error { return nil }

// NewStore creates the backend selected by cfg.Mode
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return NewSQLiteStore(cfg.SQLitePath, cfg.Prefix, logger)
	case ModeRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.Prefix, logger)
	case ModeDynamoDB:
		return NewDynamoDBStore(ctx, cfg.Dynamo, cfg.Prefix, logger)
	default:
		logger.Info().Msg("persistence disabled (STORAGE_MODE=memory)")
		return NewMemoryStore(), nil
	}
}
