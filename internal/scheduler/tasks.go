// Package scheduler runs background work over asynq: the periodic ERP
// catalog pull plus on-demand syncs triggered from the admin API.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCatalogSync = "erp.catalog.sync"

type CatalogSyncPayload struct {
	Reason string `json:"reason"`
}

func NewCatalogSyncTask(payload CatalogSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogSync, data), nil
}

func ParseCatalogSyncPayload(task *asynq.Task) (CatalogSyncPayload, error) {
	var payload CatalogSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CatalogSyncPayload{}, err
	}
	return payload, nil
}
