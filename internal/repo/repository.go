package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/uptimeguard/internal/domain"
)

// ErrNotFound is returned by single-document reads and conditional updates
// when the document does not exist.
var ErrNotFound = errors.New("not found")

// Ports (interfaces); adapters live in memory, postgres and dynamo.

type TargetStore interface {
	// List is the bulk read a pass starts with. Its failure is the only fatal one.
	List(ctx context.Context) ([]*domain.MonitoredTarget, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.MonitoredTarget, error)
	// UpdateStatus applies one patch and returns ErrNotFound if the target is gone.
	UpdateStatus(ctx context.Context, p domain.StatusPatch) error
	// ApplyStatusBatch commits every patch of a pass as one unit where the backend
	// allows it. Patches for targets that no longer exist are ignored.
	ApplyStatusBatch(ctx context.Context, ps []domain.StatusPatch) error
}

type RecordStore interface {
	Append(ctx context.Context, r domain.CheckRecord) error
	// Range returns records with from <= timestamp < to, oldest first.
	Range(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckRecord, error)
	ByDate(ctx context.Context, id domain.TargetID, date string) ([]domain.CheckRecord, error)
	Delete(ctx context.Context, recs []domain.CheckRecord) error
}

type SummaryStore interface {
	HasSummary(ctx context.Context, id domain.TargetID, date string) (bool, error)
	PutSummary(ctx context.Context, s domain.DailySummary) error
}

// OwnerStore is the read-only subscription lookup. A missing owner is (nil, nil).
type OwnerStore interface {
	GetOwner(ctx context.Context, ownerID string) (*domain.Owner, error)
}

// Seeder writes fixtures. Target CRUD belongs to the dashboard; the engine
// only needs this for tests and the operator CLI.
type Seeder interface {
	AddTarget(ctx context.Context, t *domain.MonitoredTarget) error
	PutOwner(ctx context.Context, o domain.Owner) error
}

// Store is everything the engine needs from one backend.
type Store interface {
	TargetStore
	RecordStore
	SummaryStore
	OwnerStore
	Seeder
}
