package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "2024-06-03.json"},
		{"reports", "reports/2024-06-03.json"},
		{"reports/", "reports/2024-06-03.json"},
	}

	for _, tt := range tests {
		e := newS3Exporter(&fakePutter{}, Config{Bucket: "b", Prefix: tt.prefix}, zerolog.Nop())
		if got := e.ObjectKey("2024-06-03"); got != tt.want {
			t.Errorf("ObjectKey with prefix %q = %s, want %s", tt.prefix, got, tt.want)
		}
	}
}

func TestExportUploadsReport(t *testing.T) {
	putter := &fakePutter{}
	e := newS3Exporter(putter, Config{Bucket: "archive", Prefix: "reports"}, zerolog.Nop())

	report := types.DailyReport{
		Date:       "2024-06-03",
		Aggregates: map[string]types.DayTotals{"alice": {CallMs: 4500}},
		History: map[string][]types.HistoryEntry{
			"alice": {{Type: types.HistoryCallEnd, DurationMs: 4500}},
		},
	}

	loc, err := e.Export(context.Background(), report)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if loc != "s3://archive/reports/2024-06-03.json" {
		t.Errorf("location = %s", loc)
	}
	if aws.ToString(putter.input.ContentType) != "application/json" {
		t.Errorf("content type = %s", aws.ToString(putter.input.ContentType))
	}

	var got types.DailyReport
	if err := json.Unmarshal(putter.body, &got); err != nil {
		t.Fatalf("uploaded body is not a report: %v", err)
	}
	if got.Aggregates["alice"].CallMs != 4500 {
		t.Errorf("uploaded totals = %+v", got.Aggregates["alice"])
	}
}

func TestExportErrors(t *testing.T) {
	e := newS3Exporter(&fakePutter{err: errors.New("denied")}, Config{Bucket: "archive"}, zerolog.Nop())

	if _, err := e.Export(context.Background(), types.DailyReport{}); err == nil {
		t.Error("expected an error for a report without date")
	}
	if _, err := e.Export(context.Background(), types.DailyReport{Date: "2024-06-03"}); err == nil {
		t.Error("expected the upload error to surface")
	}
}

func TestNewS3ExporterRequiresBucket(t *testing.T) {
	if _, err := NewS3Exporter(context.Background(), Config{Region: "eu-central-1"}, zerolog.Nop()); err == nil {
		t.Error("expected an error without bucket")
	}
}
