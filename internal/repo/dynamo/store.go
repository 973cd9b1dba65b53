package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

const maxUnprocessedRetries = 5

// ---- Seeder ----

func (s *Store) AddTarget(ctx context.Context, t *domain.MonitoredTarget) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusUnknown
	}
	item, err := attributevalue.MarshalMap(toTargetItem(t))
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.t.targets), Item: item}); err != nil {
		return fmt.Errorf("put target: %w", err)
	}
	return nil
}

func (s *Store) PutOwner(ctx context.Context, o domain.Owner) error {
	item, err := attributevalue.MarshalMap(ownerItem{ID: o.ID, Role: o.Role, Plan: o.Plan, PlanEndsAt: o.PlanEndsAt})
	if err != nil {
		return fmt.Errorf("marshal owner: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.t.owners), Item: item}); err != nil {
		return fmt.Errorf("put owner: %w", err)
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) List(ctx context.Context) ([]*domain.MonitoredTarget, error) {
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(s.t.targets),
		ConsistentRead: aws.Bool(true),
	})
	var out []*domain.MonitoredTarget
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan targets: %w", err)
		}
		var items []targetItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal targets: %w", err)
		}
		for _, it := range items {
			out = append(out, it.domain())
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.MonitoredTarget, error) {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.t.targets),
		Key:            map[string]types.AttributeValue{attrID: &types.AttributeValueMemberS{Value: string(id)}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	if res.Item == nil {
		return nil, repo.ErrNotFound
	}
	var it targetItem
	if err := attributevalue.UnmarshalMap(res.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal target: %w", err)
	}
	return it.domain(), nil
}

// UpdateStatus is a conditional update: it never recreates a deleted target.
func (s *Store) UpdateStatus(ctx context.Context, p domain.StatusPatch) error {
	ex, err := statusExpression(p)
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.t.targets),
		Key:                       targetKey(p.TargetID),
		UpdateExpression:          aws.String(ex.update),
		ConditionExpression:       aws.String(ex.condition),
		ExpressionAttributeNames:  ex.names,
		ExpressionAttributeValues: ex.values,
	})
	if isConditionFailed(err) {
		return repo.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update status %s: %w", p.TargetID, err)
	}
	return nil
}

// ApplyStatusBatch writes patches in transactions of up to 100 items. A
// transaction cancelled because a target vanished is replayed item by item so
// the remaining targets still get their status.
func (s *Store) ApplyStatusBatch(ctx context.Context, ps []domain.StatusPatch) error {
	var errs error
	for _, batch := range chunks(ps, maxTransactItems) {
		items := make([]types.TransactWriteItem, 0, len(batch))
		for _, p := range batch {
			ex, err := statusExpression(p)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{Update: &types.Update{
				TableName:                 aws.String(s.t.targets),
				Key:                       targetKey(p.TargetID),
				UpdateExpression:          aws.String(ex.update),
				ConditionExpression:       aws.String(ex.condition),
				ExpressionAttributeNames:  ex.names,
				ExpressionAttributeValues: ex.values,
			}})
		}

		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			continue
		}
		if !isTxCanceled(err) {
			errs = multierr.Append(errs, fmt.Errorf("transact status: %w", err))
			continue
		}

		s.log.Warn("status_tx_canceled_fallback", zap.Int("patches", len(batch)), zap.Error(err))
		for _, p := range batch {
			if err := s.UpdateStatus(ctx, p); err != nil && !errors.Is(err, repo.ErrNotFound) {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

// ---- RecordStore ----

func (s *Store) Append(ctx context.Context, r domain.CheckRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	item, err := attributevalue.MarshalMap(toRecordItem(r))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.t.records), Item: item}); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

func (s *Store) Range(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckRecord, error) {
	// "<ts>#<id>" sorts after "<ts>", so BETWEEN from and to is from <= ts < to.
	return s.queryRecords(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.t.records),
		KeyConditionExpression: aws.String("#tid = :tid AND #sk BETWEEN :from AND :to"),
		ExpressionAttributeNames: map[string]string{
			"#tid": attrTargetID,
			"#sk":  attrSortKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid":  &types.AttributeValueMemberS{Value: string(id)},
			":from": &types.AttributeValueMemberS{Value: timeKey(from)},
			":to":   &types.AttributeValueMemberS{Value: timeKey(to)},
		},
	})
}

func (s *Store) ByDate(ctx context.Context, id domain.TargetID, date string) ([]domain.CheckRecord, error) {
	return s.queryRecords(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.t.records),
		KeyConditionExpression: aws.String("#tid = :tid"),
		FilterExpression:       aws.String("#date = :date"),
		ExpressionAttributeNames: map[string]string{
			"#tid":  attrTargetID,
			"#date": attrDate,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid":  &types.AttributeValueMemberS{Value: string(id)},
			":date": &types.AttributeValueMemberS{Value: date},
		},
	})
}

func (s *Store) queryRecords(ctx context.Context, in *dynamodb.QueryInput) ([]domain.CheckRecord, error) {
	p := dynamodb.NewQueryPaginator(s.client, in)
	var out []domain.CheckRecord
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query records: %w", err)
		}
		var items []recordItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		for _, it := range items {
			out = append(out, it.domain())
		}
	}
	return out, nil
}

// Delete removes records in BatchWriteItem calls of 25, retrying unprocessed keys.
func (s *Store) Delete(ctx context.Context, recs []domain.CheckRecord) error {
	for _, batch := range chunks(recs, maxBatchWrite) {
		reqs := make([]types.WriteRequest, 0, len(batch))
		for _, r := range batch {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					attrTargetID: &types.AttributeValueMemberS{Value: string(r.TargetID)},
					attrSortKey:  &types.AttributeValueMemberS{Value: recordSortKey(r.Timestamp, r.ID)},
				},
			}})
		}
		if err := s.batchWrite(ctx, s.t.records, reqs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) batchWrite(ctx context.Context, table string, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{table: reqs}
	for attempt := 0; len(pending[table]) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return fmt.Errorf("batch write %s: %d items unprocessed", table, len(pending[table]))
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch write %s: %w", table, err)
		}
		pending = out.UnprocessedItems
	}
	return nil
}

// ---- SummaryStore ----

func (s *Store) HasSummary(ctx context.Context, id domain.TargetID, date string) (bool, error) {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.t.summaries),
		Key: map[string]types.AttributeValue{
			attrTargetID: &types.AttributeValueMemberS{Value: string(id)},
			attrDate:     &types.AttributeValueMemberS{Value: date},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("get summary: %w", err)
	}
	return res.Item != nil, nil
}

// PutSummary never overwrites an existing (target, date) summary.
func (s *Store) PutSummary(ctx context.Context, d domain.DailySummary) error {
	item, err := attributevalue.MarshalMap(summaryItem{
		TargetID:      string(d.TargetID),
		Date:          d.Date,
		TotalChecks:   d.TotalChecks,
		UpChecks:      d.UpChecks,
		UptimePercent: d.UptimePercent,
		AvgResponseMs: d.AvgResponseMs,
		MinResponseMs: d.MinResponseMs,
		MaxResponseMs: d.MaxResponseMs,
		CreatedAt:     d.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.t.summaries),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#tid)"),
		ExpressionAttributeNames: map[string]string{"#tid": attrTargetID},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// ---- OwnerStore ----

func (s *Store) GetOwner(ctx context.Context, ownerID string) (*domain.Owner, error) {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.t.owners),
		Key:       map[string]types.AttributeValue{attrID: &types.AttributeValueMemberS{Value: ownerID}},
	})
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	if res.Item == nil {
		return nil, nil
	}
	var it ownerItem
	if err := attributevalue.UnmarshalMap(res.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal owner: %w", err)
	}
	return &domain.Owner{ID: it.ID, Role: it.Role, Plan: it.Plan, PlanEndsAt: it.PlanEndsAt}, nil
}

// ---- expressions ----

type expression struct {
	update    string
	condition string
	names     map[string]string
	values    map[string]types.AttributeValue
}

func targetKey(id domain.TargetID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attrID: &types.AttributeValueMemberS{Value: string(id)}}
}

// statusExpression turns a patch into an update that touches only runtime fields.
func statusExpression(p domain.StatusPatch) (expression, error) {
	ex := expression{
		condition: "attribute_exists(#id)",
		names: map[string]string{
			"#id":      attrID,
			"#status":  "status",
			"#err":     "last_error",
			"#checked": "last_checked_at",
			"#rt":      "last_response_ms",
		},
		values: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(p.Status)},
			":err":    &types.AttributeValueMemberS{Value: p.ErrorMessage},
		},
	}
	checked, err := attributevalue.Marshal(p.CheckedAt)
	if err != nil {
		return ex, fmt.Errorf("marshal checked_at: %w", err)
	}
	ex.values[":checked"] = checked

	set := "SET #status = :status, #err = :err, #checked = :checked"
	if p.StatusChangedAt != nil {
		changed, err := attributevalue.Marshal(*p.StatusChangedAt)
		if err != nil {
			return ex, fmt.Errorf("marshal status_changed_at: %w", err)
		}
		ex.names["#changed"] = "last_status_change"
		ex.values[":changed"] = changed
		set += ", #changed = :changed"
	}
	if p.ResponseTimeMs != nil {
		ex.values[":rt"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*p.ResponseTimeMs)}
		ex.update = set + ", #rt = :rt"
	} else {
		ex.update = set + " REMOVE #rt"
	}
	return ex, nil
}
