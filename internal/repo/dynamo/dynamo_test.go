package dynamo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

// fakeAPI overrides only what a test needs; any other call panics on the nil embed.
type fakeAPI struct {
	API

	gone        map[string]bool
	transactErr error
	transacts   int
	updates     []string

	batchSizes    []int
	unprocessOnce bool

	lastQuery *dynamodb.QueryInput
	items     map[string]map[string]types.AttributeValue
}

func (f *fakeAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transacts++
	return &dynamodb.TransactWriteItemsOutput{}, f.transactErr
}

func (f *fakeAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	id := in.Key[attrID].(*types.AttributeValueMemberS).Value
	f.updates = append(f.updates, id)
	if f.gone[id] {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("gone")}
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeAPI) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	out := &dynamodb.BatchWriteItemOutput{}
	for table, reqs := range in.RequestItems {
		f.batchSizes = append(f.batchSizes, len(reqs))
		if len(reqs) > maxBatchWrite {
			return nil, fmt.Errorf("too many items: %d", len(reqs))
		}
		if f.unprocessOnce {
			f.unprocessOnce = false
			out.UnprocessedItems = map[string][]types.WriteRequest{table: reqs[:1]}
		}
	}
	return out, nil
}

func (f *fakeAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	return &dynamodb.QueryOutput{}, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := in.Key[attrID].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[id]}, nil
}

func TestChunks(t *testing.T) {
	got := chunks(make([]int, 60), 25)
	if len(got) != 3 || len(got[0]) != 25 || len(got[2]) != 10 {
		t.Fatalf("unexpected chunking: %d chunks", len(got))
	}
	if len(chunks([]int{}, 25)) != 0 {
		t.Fatalf("empty input should give no chunks")
	}
}

func TestStatusExpression(t *testing.T) {
	now := time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)

	ex, err := statusExpression(domain.StatusPatch{TargetID: "A", Status: domain.StatusDown, ErrorMessage: "HTTP 500: Internal Server Error", CheckedAt: now})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ex.update, "REMOVE #rt") {
		t.Fatalf("nil response time must remove the attribute: %s", ex.update)
	}
	if _, ok := ex.names["#changed"]; ok {
		t.Fatalf("unchanged status must not touch last_status_change")
	}

	ms := 120
	ex, _ = statusExpression(domain.StatusPatch{TargetID: "A", Status: domain.StatusUp, ResponseTimeMs: &ms, CheckedAt: now, StatusChangedAt: &now})
	if !strings.Contains(ex.update, "#changed = :changed") || !strings.Contains(ex.update, "#rt = :rt") {
		t.Fatalf("unexpected update: %s", ex.update)
	}
	if n, ok := ex.values[":rt"].(*types.AttributeValueMemberN); !ok || n.Value != "120" {
		t.Fatalf("response time value wrong: %#v", ex.values[":rt"])
	}
}

func TestApplyStatusBatch_FallsBackWhenTargetVanished(t *testing.T) {
	f := &fakeAPI{
		gone:        map[string]bool{"B": true},
		transactErr: &types.TransactionCanceledException{Message: aws.String("ConditionalCheckFailed")},
	}
	s := NewWithClient(f, "test_", zap.NewNop())
	now := time.Now().UTC()

	err := s.ApplyStatusBatch(context.Background(), []domain.StatusPatch{
		{TargetID: "A", Status: domain.StatusUp, CheckedAt: now},
		{TargetID: "B", Status: domain.StatusDown, CheckedAt: now},
		{TargetID: "C", Status: domain.StatusUp, CheckedAt: now},
	})
	if err != nil {
		t.Fatalf("vanished target must not fail the batch: %v", err)
	}
	if f.transacts != 1 || len(f.updates) != 3 {
		t.Fatalf("want 1 transaction + 3 single updates, got %d/%d", f.transacts, len(f.updates))
	}
}

func TestApplyStatusBatch_SplitsTransactions(t *testing.T) {
	f := &fakeAPI{}
	s := NewWithClient(f, "", zap.NewNop())
	ps := make([]domain.StatusPatch, 250)
	for i := range ps {
		ps[i] = domain.StatusPatch{TargetID: domain.TargetID(fmt.Sprint(i)), Status: domain.StatusUp, CheckedAt: time.Now()}
	}
	if err := s.ApplyStatusBatch(context.Background(), ps); err != nil {
		t.Fatal(err)
	}
	if f.transacts != 3 {
		t.Fatalf("want 3 transactions of <=100, got %d", f.transacts)
	}
}

func TestUpdateStatus_MissingIsNotFound(t *testing.T) {
	f := &fakeAPI{gone: map[string]bool{"X": true}}
	s := NewWithClient(f, "", zap.NewNop())
	err := s.UpdateStatus(context.Background(), domain.StatusPatch{TargetID: "X", Status: domain.StatusUp, CheckedAt: time.Now()})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDelete_BatchesOf25AndRetriesUnprocessed(t *testing.T) {
	f := &fakeAPI{unprocessOnce: true}
	s := NewWithClient(f, "", zap.NewNop())
	recs := make([]domain.CheckRecord, 60)
	for i := range recs {
		recs[i] = domain.CheckRecord{ID: fmt.Sprint(i), TargetID: "A", Timestamp: time.Now()}
	}
	if err := s.Delete(context.Background(), recs); err != nil {
		t.Fatal(err)
	}
	// 25 (+1 retry), 25, 10
	want := []int{25, 1, 25, 10}
	if fmt.Sprint(f.batchSizes) != fmt.Sprint(want) {
		t.Fatalf("batch sizes %v want %v", f.batchSizes, want)
	}
}

func TestRange_UsesHalfOpenSortKeyBounds(t *testing.T) {
	f := &fakeAPI{}
	s := NewWithClient(f, "", zap.NewNop())
	from := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	if _, err := s.Range(context.Background(), "A", from, to); err != nil {
		t.Fatal(err)
	}
	v := f.lastQuery.ExpressionAttributeValues
	if v[":from"].(*types.AttributeValueMemberS).Value != "2025-08-18T00:00:00.000000000Z" {
		t.Fatalf("from bound wrong: %v", v[":from"])
	}
	// a record stamped exactly at `to` sorts after the bound and is excluded
	if recordSortKey(to, "r1") <= v[":to"].(*types.AttributeValueMemberS).Value {
		t.Fatalf("record at upper bound would be included")
	}
	if recordSortKey(from, "r1") < v[":from"].(*types.AttributeValueMemberS).Value {
		t.Fatalf("record at lower bound would be excluded")
	}
}

func TestGet_MissingIsNotFound(t *testing.T) {
	s := NewWithClient(&fakeAPI{}, "", zap.NewNop())
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

// Runs against DynamoDB Local when DYNAMO_TEST_ENDPOINT is set, e.g. http://localhost:8000.
func TestDynamoStore_Integration(t *testing.T) {
	endpoint := os.Getenv("DYNAMO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("DYNAMO_TEST_ENDPOINT not set; skipping DynamoDB integration test")
	}
	ctx := context.Background()
	s, err := New(ctx, Options{
		Region:          "us-east-1",
		AccessKeyID:     "local",
		SecretAccessKey: "local",
		Endpoint:        endpoint,
		TablePrefix:     fmt.Sprintf("it%d_", time.Now().UnixNano()),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.EnsureTables(ctx); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}

	tgt := &domain.MonitoredTarget{ID: "T1", Address: "https://example.com", Type: domain.TypeHTTP,
		Monitoring: &domain.MonitoringConfig{CheckIntervalMinutes: 5, Weekdays: []int{1, 2}}}
	if err := s.AddTarget(ctx, tgt); err != nil {
		t.Fatalf("AddTarget: %v", err)
	}
	now := time.Now().UTC()
	if err := s.ApplyStatusBatch(ctx, []domain.StatusPatch{
		{TargetID: "T1", Status: domain.StatusDown, ErrorMessage: "HTTP 500: Internal Server Error", CheckedAt: now, StatusChangedAt: &now},
		{TargetID: "gone", Status: domain.StatusUp, CheckedAt: now},
	}); err != nil {
		t.Fatalf("ApplyStatusBatch: %v", err)
	}
	got, err := s.Get(ctx, "T1")
	if err != nil || got.Status != domain.StatusDown || got.Monitoring == nil || len(got.Monitoring.Weekdays) != 2 {
		t.Fatalf("Get after patch: %+v %v", got, err)
	}
	if _, err := s.Get(ctx, "gone"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("patch must not create missing targets: %v", err)
	}

	for i := 0; i < 30; i++ {
		_ = s.Append(ctx, domain.CheckRecord{TargetID: "T1", Status: domain.StatusUp, Timestamp: now.Add(time.Duration(i) * time.Second), Date: "2025-08-17"})
	}
	day, err := s.ByDate(ctx, "T1", "2025-08-17")
	if err != nil || len(day) != 30 {
		t.Fatalf("ByDate: %d %v", len(day), err)
	}
	if err := s.Delete(ctx, day); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	day, _ = s.ByDate(ctx, "T1", "2025-08-17")
	if len(day) != 0 {
		t.Fatalf("records left after delete: %d", len(day))
	}
}
