// Package queue carries mirror repair jobs over asynq.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/hibiken/asynq"
)

const (
	TypeProjectMessage = "mirror:project_message"
	TypeAdvanceState   = "mirror:advance_state"
)

type ProjectMessagePayload struct {
	MessageID int64 `json:"message_id"`
}

type AdvanceStatePayload struct {
	MessageIDs []int64              `json:"message_ids"`
	State      domain.DeliveryState `json:"state"`
}

func NewProjectMessageTask(messageID int64) (*asynq.Task, error) {
	if messageID <= 0 {
		return nil, fmt.Errorf("%w: message id %d", domain.ErrInvalidArgument, messageID)
	}
	b, err := json.Marshal(ProjectMessagePayload{MessageID: messageID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProjectMessage, b), nil
}

func NewAdvanceStateTask(ids []int64, state domain.DeliveryState) (*asynq.Task, error) {
	if len(ids) == 0 || !state.Valid() {
		return nil, fmt.Errorf("%w: empty state repair", domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(AdvanceStatePayload{MessageIDs: ids, State: state})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAdvanceState, b), nil
}
