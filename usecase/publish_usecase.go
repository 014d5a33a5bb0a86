package usecase

import (
	"context"
	"fmt"
	"time"

	"social-agent/domain/model"
	"social-agent/domain/repository"
	"social-agent/infrastructure/logger"
)

// PublishRequest describes one fan-out: a single uploaded asset pushed to the
// named platforms in the order given.
type PublishRequest struct {
	Asset     *model.MediaAsset
	Caption   string
	Platforms []string
}

type IPublishUsecase interface {
	Publish(ctx context.Context, req PublishRequest) []model.PublishOutcome
	AuthStatus(ctx context.Context) map[string]bool
	Platform(name string) (repository.ISocialPlatform, bool)
	History(ctx context.Context, limit int) ([]*model.PublishRecord, error)
}

type publishUsecase struct {
	platforms []repository.ISocialPlatform
	byName    map[string]repository.ISocialPlatform
	history   repository.IPublishHistory
	broadcast func(model.PublishOutcome)
}

// Option configures optional collaborators on the usecase.
type Option func(*publishUsecase)

// WithHistory records every outcome to the given repository, best effort.
func WithHistory(h repository.IPublishHistory) Option {
	return func(u *publishUsecase) { u.history = h }
}

// WithBroadcaster invokes fn for every outcome as it is produced, before the
// batch returns. Used to feed the SSE stream.
func WithBroadcaster(fn func(model.PublishOutcome)) Option {
	return func(u *publishUsecase) { u.broadcast = fn }
}

func NewPublishUsecase(platforms []repository.ISocialPlatform, opts ...Option) IPublishUsecase {
	u := &publishUsecase{
		platforms: platforms,
		byName:    make(map[string]repository.ISocialPlatform, len(platforms)),
	}
	for _, p := range platforms {
		u.byName[p.Name()] = p
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Publish fans the asset out to each requested platform sequentially, in
// request order. Every requested platform yields exactly one outcome; a
// platform failure (including a panic inside a client) becomes a failed
// outcome and never aborts the rest of the batch.
func (u *publishUsecase) Publish(ctx context.Context, req PublishRequest) []model.PublishOutcome {
	outcomes := make([]model.PublishOutcome, 0, len(req.Platforms))
	for _, name := range req.Platforms {
		outcome := u.publishOne(ctx, name, req.Asset, req.Caption)
		u.record(ctx, req.Asset, outcome)
		if u.broadcast != nil {
			u.broadcast(outcome)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (u *publishUsecase) publishOne(ctx context.Context, name string, asset *model.MediaAsset, caption string) (outcome model.PublishOutcome) {
	platform, ok := u.byName[name]
	if !ok {
		return model.PublishOutcome{
			Platform: name,
			Success:  false,
			Message:  fmt.Sprintf("unknown platform: %s", name),
		}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WithField("platform", name).WithField("panic", r).Error("publish panicked")
			outcome = model.PublishOutcome{
				Platform: name,
				Success:  false,
				Message:  "publish failed unexpectedly",
			}
		}
	}()
	return platform.Publish(ctx, asset, caption)
}

func (u *publishUsecase) record(ctx context.Context, asset *model.MediaAsset, outcome model.PublishOutcome) {
	if u.history == nil {
		return
	}
	rec := model.PublishRecord{
		Platform:  outcome.Platform,
		AssetName: asset.FileName,
		AssetKind: string(asset.Kind),
		Success:   outcome.Success,
		Message:   outcome.Message,
		CreatedAt: time.Now().UTC(),
	}
	if outcome.PostID != "" {
		id := outcome.PostID
		rec.PostID = &id
	}
	if outcome.URL != "" {
		url := outcome.URL
		rec.URL = &url
	}
	if err := u.history.InsertRecord(ctx, &rec); err != nil {
		logger.GetLogger().WithField("error", err).Warn("could not record publish outcome")
	}
}

// AuthStatus checks each registered platform's session validity. Checks are
// live (each one may hit the remote API), so callers typically sit behind the
// status cache.
func (u *publishUsecase) AuthStatus(ctx context.Context) map[string]bool {
	status := make(map[string]bool, len(u.platforms))
	for _, p := range u.platforms {
		status[p.Name()] = p.IsAuthenticated(ctx)
	}
	return status
}

func (u *publishUsecase) Platform(name string) (repository.ISocialPlatform, bool) {
	p, ok := u.byName[name]
	return p, ok
}

func (u *publishUsecase) History(ctx context.Context, limit int) ([]*model.PublishRecord, error) {
	if u.history == nil {
		return []*model.PublishRecord{}, nil
	}
	return u.history.ListRecent(ctx, limit)
}
