package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskHuntRun = "hunting.run"

type HuntRunPayload struct {
	TenantID string `json:"tenantId"`
}

func NewHuntRunTask(payload HuntRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHuntRun, data), nil
}

func ParseHuntRunPayload(task *asynq.Task) (HuntRunPayload, error) {
	var payload HuntRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return HuntRunPayload{}, err
	}
	return payload, nil
}
