package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-agent/domain/model"
	"social-agent/domain/repository"
	"social-agent/usecase"
)

type stubPlatform struct {
	name    string
	authed  bool
	outcome model.PublishOutcome
	panics  bool
	calls   *[]string
}

func (s *stubPlatform) Name() string                             { return s.name }
func (s *stubPlatform) IsAuthenticated(ctx context.Context) bool { return s.authed }
func (s *stubPlatform) AuthURL(ctx context.Context) (string, error) {
	return "https://auth.example/" + s.name, nil
}
func (s *stubPlatform) ExchangeCode(ctx context.Context, code, state string) error { return nil }
func (s *stubPlatform) Publish(ctx context.Context, asset *model.MediaAsset, caption string) model.PublishOutcome {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.name)
	}
	if s.panics {
		panic("boom")
	}
	return s.outcome
}

type MockPublishHistory struct {
	mock.Mock
}

func (m *MockPublishHistory) InsertRecord(ctx context.Context, rec *model.PublishRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPublishHistory) ListRecent(ctx context.Context, limit int) ([]*model.PublishRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*model.PublishRecord), args.Error(1)
}

func asset() *model.MediaAsset {
	return &model.MediaAsset{
		Path:     "/tmp/uploads/test.jpg",
		FileName: "test.jpg",
		Kind:     model.MediaKindImage,
		Size:     1024,
		MimeType: "image/jpeg",
	}
}

func TestPublishFanOutPreservesRequestOrder(t *testing.T) {
	var calls []string
	platforms := []*stubPlatform{
		{name: "facebook", outcome: model.PublishOutcome{Platform: "facebook", Success: true}, calls: &calls},
		{name: "instagram", outcome: model.PublishOutcome{Platform: "instagram", Success: true}, calls: &calls},
		{name: "tiktok", outcome: model.PublishOutcome{Platform: "tiktok", Success: false, Message: "nope"}, calls: &calls},
	}
	uc := usecase.NewPublishUsecase(toInterfaces(platforms))

	outcomes := uc.Publish(context.Background(), usecase.PublishRequest{
		Asset:     asset(),
		Platforms: []string{"tiktok", "facebook", "instagram"},
	})

	require.Len(t, outcomes, 3)
	assert.Equal(t, []string{"tiktok", "facebook", "instagram"}, calls)
	assert.Equal(t, "tiktok", outcomes[0].Platform)
	assert.Equal(t, "facebook", outcomes[1].Platform)
	assert.Equal(t, "instagram", outcomes[2].Platform)
}

func TestPublishUnknownPlatformYieldsFailedOutcome(t *testing.T) {
	uc := usecase.NewPublishUsecase(toInterfaces([]*stubPlatform{
		{name: "facebook", outcome: model.PublishOutcome{Platform: "facebook", Success: true}},
	}))

	outcomes := uc.Publish(context.Background(), usecase.PublishRequest{
		Asset:     asset(),
		Platforms: []string{"myspace", "facebook"},
	})

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Message, "unknown platform")
	assert.True(t, outcomes[1].Success)
}

func TestPublishPanicBecomesFailureAndBatchContinues(t *testing.T) {
	platforms := []*stubPlatform{
		{name: "facebook", panics: true},
		{name: "instagram", outcome: model.PublishOutcome{Platform: "instagram", Success: true}},
	}
	uc := usecase.NewPublishUsecase(toInterfaces(platforms))

	outcomes := uc.Publish(context.Background(), usecase.PublishRequest{
		Asset:     asset(),
		Platforms: []string{"facebook", "instagram"},
	})

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Success)
	assert.True(t, outcomes[1].Success)
}

func TestPublishBroadcastsEachOutcomeInOrder(t *testing.T) {
	var broadcast []string
	uc := usecase.NewPublishUsecase(toInterfaces([]*stubPlatform{
		{name: "facebook", outcome: model.PublishOutcome{Platform: "facebook", Success: true}},
		{name: "tiktok", outcome: model.PublishOutcome{Platform: "tiktok", Success: false}},
	}), usecase.WithBroadcaster(func(o model.PublishOutcome) {
		broadcast = append(broadcast, o.Platform)
	}))

	uc.Publish(context.Background(), usecase.PublishRequest{
		Asset:     asset(),
		Platforms: []string{"tiktok", "facebook"},
	})

	assert.Equal(t, []string{"tiktok", "facebook"}, broadcast)
}

func TestPublishRecordsHistoryPerOutcome(t *testing.T) {
	history := new(MockPublishHistory)
	history.On("InsertRecord", mock.Anything, mock.MatchedBy(func(rec *model.PublishRecord) bool {
		return rec.Platform == "facebook" && rec.AssetName == "test.jpg" && rec.Success
	})).Return(nil).Once()

	uc := usecase.NewPublishUsecase(toInterfaces([]*stubPlatform{
		{name: "facebook", outcome: model.PublishOutcome{Platform: "facebook", Success: true, PostID: "123"}},
	}), usecase.WithHistory(history))

	uc.Publish(context.Background(), usecase.PublishRequest{
		Asset:     asset(),
		Platforms: []string{"facebook"},
	})

	history.AssertExpectations(t)
}

func TestAuthStatusCoversEveryPlatform(t *testing.T) {
	uc := usecase.NewPublishUsecase(toInterfaces([]*stubPlatform{
		{name: "facebook", authed: true},
		{name: "instagram", authed: false},
		{name: "tiktok", authed: true},
	}))

	status := uc.AuthStatus(context.Background())

	assert.Equal(t, map[string]bool{"facebook": true, "instagram": false, "tiktok": true}, status)
}

func TestHistoryWithoutRepositoryReturnsEmpty(t *testing.T) {
	uc := usecase.NewPublishUsecase(nil)

	records, err := uc.History(context.Background(), 10)

	require.NoError(t, err)
	assert.Empty(t, records)
}

func toInterfaces(stubs []*stubPlatform) []repository.ISocialPlatform {
	out := make([]repository.ISocialPlatform, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, s)
	}
	return out
}
