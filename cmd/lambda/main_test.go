package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/config"
	"github.com/hamed0406/uptimeguard/internal/scheduler"
)

type stubPasser struct{ err error }

func (s stubPasser) RunPass(ctx context.Context) (scheduler.Summary, error) {
	return scheduler.Summary{Total: 2, Checked: 2, Up: 2}, s.err
}

func TestHandler(t *testing.T) {
	h := handler(stubPasser{}, zap.NewNop())
	sum, err := h(context.Background(), events.CloudWatchEvent{ID: "e1", Source: "aws.events"})
	if err != nil || sum.Up != 2 {
		t.Fatalf("sum=%+v err=%v", sum, err)
	}

	h = handler(stubPasser{err: errors.New("list targets: timeout")}, zap.NewNop())
	if _, err := h(context.Background(), events.CloudWatchEvent{}); err == nil {
		t.Fatal("fatal pass error must fail the invocation")
	}
}

func TestCheckStore(t *testing.T) {
	if err := checkStore(config.Config{Store: config.StoreMemory}); err == nil {
		t.Fatal("memory store must be rejected")
	}
	for _, st := range []string{config.StoreDynamo, config.StorePostgres} {
		if err := checkStore(config.Config{Store: st}); err != nil {
			t.Fatalf("%s: %v", st, err)
		}
	}
}
