package repository

import (
	"context"

	"social-agent/domain/model"
)

// IPublishHistory records publish outcomes for later inspection.
type IPublishHistory interface {
	InsertRecord(ctx context.Context, rec *model.PublishRecord) error
	ListRecent(ctx context.Context, limit int) ([]*model.PublishRecord, error)
}
