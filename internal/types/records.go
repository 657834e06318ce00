package types

// KVItem is one key of the flat persistence namespace as stored in DynamoDB
type KVItem struct {
	Key       string `json:"key" dynamodbav:"Key"`             // partition key
	Value     string `json:"value" dynamodbav:"Value"`         // JSON document
	UpdatedAt string `json:"updatedAt" dynamodbav:"UpdatedAt"` // RFC3339
}

// DailyReport is the archived view of one day, used by the exporter
type DailyReport struct {
	Date       string                    `json:"date"` // YYYY-MM-DD
	Aggregates map[string]DayTotals      `json:"aggregates"`
	History    map[string][]HistoryEntry `json:"history"`
}
