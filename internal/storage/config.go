package storage

import "os"

// Mode selects the storage backend
type Mode string

const (
	ModeMemory   Mode = "memory"
	ModeSQLite   Mode = "sqlite"
	ModeRedis    Mode = "redis"
	ModeDynamoDB Mode = "dynamodb"
)

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
)

// Config holds storage configuration
type Config struct {
	Mode       Mode
	Prefix     string
	SQLitePath string
	RedisAddr  string
	Dynamo     DynamoConfig
}

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode     DynamoMode
	Endpoint string // for local mode
	Region   string
	Table    string
}

// LoadConfig loads storage config from environment
func LoadConfig() Config {
	mode := Mode(getEnv("STORAGE_MODE", string(ModeSQLite)))
	switch mode {
	case ModeMemory, ModeSQLite, ModeRedis, ModeDynamoDB:
	default:
		mode = ModeMemory
	}

	dynamoMode := DynamoMode(getEnv("DYNAMODB_MODE", string(DynamoModeLocal)))
	if dynamoMode != DynamoModeAWS {
		dynamoMode = DynamoModeLocal
	}

	return Config{
		Mode:       mode,
		Prefix:     getEnv("STORAGE_PREFIX", "queueMonitorReport_"),
		SQLitePath: getEnv("SQLITE_PATH", "./queuemonitor.db"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		Dynamo: DynamoConfig{
			Mode:     dynamoMode,
			Endpoint: getEnv("DYNAMODB_ENDPOINT", "http://localhost:8000"),
			Region:   getEnv("DYNAMODB_REGION", "eu-central-1"),
			Table:    getEnv("DYNAMODB_TABLE", "queuemonitor-state"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
