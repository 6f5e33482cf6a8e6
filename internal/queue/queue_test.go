package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/hibiken/asynq"
)

type fakeRepairer struct {
	projected []int64
	states    map[int64]domain.DeliveryState
	err       error
}

func (f *fakeRepairer) Reproject(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.projected = append(f.projected, id)
	return nil
}

func (f *fakeRepairer) ReapplyState(_ context.Context, ids []int64, s domain.DeliveryState) error {
	if f.err != nil {
		return f.err
	}
	if f.states == nil {
		f.states = map[int64]domain.DeliveryState{}
	}
	for _, id := range ids {
		f.states[id] = s
	}
	return nil
}

func TestTasks(t *testing.T) {
	task, err := NewAdvanceStateTask([]int64{1, 2}, domain.StateRead)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypeAdvanceState {
		t.Fatalf("type = %s", task.Type())
	}
	var p AdvanceStatePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatal(err)
	}
	if p.State != domain.StateRead || len(p.MessageIDs) != 2 {
		t.Fatalf("payload = %+v", p)
	}

	if _, err := NewProjectMessageTask(0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero id: %v", err)
	}
	if _, err := NewAdvanceStateTask(nil, domain.StateRead); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("no ids: %v", err)
	}
}

func TestMux_Dispatch(t *testing.T) {
	r := &fakeRepairer{}
	mux := NewMux(r)
	ctx := context.Background()

	project, _ := NewProjectMessageTask(7)
	if err := mux.ProcessTask(ctx, project); err != nil {
		t.Fatal(err)
	}
	advance, _ := NewAdvanceStateTask([]int64{7, 8}, domain.StateDelivered)
	if err := mux.ProcessTask(ctx, advance); err != nil {
		t.Fatal(err)
	}

	if len(r.projected) != 1 || r.projected[0] != 7 {
		t.Fatalf("projected = %v", r.projected)
	}
	if r.states[8] != domain.StateDelivered {
		t.Fatalf("states = %v", r.states)
	}
}

func TestMux_SkipRetry(t *testing.T) {
	ctx := context.Background()
	project, _ := NewProjectMessageTask(7)

	gone := NewMux(&fakeRepairer{err: domain.ErrMessageNotFound})
	if err := gone.ProcessTask(ctx, project); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("missing message should skip retry, got %v", err)
	}

	flaky := NewMux(&fakeRepairer{err: domain.ErrTransientStore})
	err := flaky.ProcessTask(ctx, project)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("transient failure should be retried, got %v", err)
	}

	bad := asynq.NewTask(TypeProjectMessage, []byte("{"))
	if err := NewMux(&fakeRepairer{}).ProcessTask(ctx, bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload should skip retry, got %v", err)
	}
}
