package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

type fakeTraffic struct {
	rows    []entities.DailyTraffic
	intents []entities.NamedCount
	since   time.Time
}

func (f *fakeTraffic) Traffic(_ context.Context, _ int, since time.Time) ([]entities.DailyTraffic, error) {
	f.since = since
	return f.rows, nil
}

func (f *fakeTraffic) IntentDistribution(context.Context, int, time.Time) ([]entities.NamedCount, error) {
	return f.intents, nil
}

type openCount int

func (o openCount) CountOpen(context.Context, int) (int, error) { return int(o), nil }

func (f *fakeUsers) UpdateLanguage(_ context.Context, id int, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.Language = language
	}
	return nil
}

func newAnalyticsFixture(traffic *fakeTraffic) (*AnalyticsService, *fakeUsers) {
	users := newFakeUsers(&entities.User{ID: 1, Email: "owner@example.com"})
	svc := NewAnalyticsService(traffic, openCount(4), users, OperatingHours{Start: "09:00", End: "18:00"})
	svc.now = func() time.Time { return time.Date(2024, 5, 20, 15, 30, 0, 0, time.UTC) }
	return svc, users
}

func TestAnalyticsService_Summary(t *testing.T) {
	traffic := &fakeTraffic{
		rows: []entities.DailyTraffic{
			{Date: "2024-05-18", Inbound: 6, Outbound: 3},
			{Date: "2024-05-20", Inbound: 2, Outbound: 1},
		},
		intents: []entities.NamedCount{{Name: entities.IntentGreeting, Value: 5}},
	}
	svc, _ := newAnalyticsFixture(traffic)

	report, err := svc.Summary(context.Background(), 1, 0)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC), traffic.since)
	require.Len(t, report.Trends, 7)
	assert.Equal(t, "2024-05-14", report.Trends[0].Date)
	assert.Equal(t, "2024-05-20", report.Trends[6].Date)
	assert.Equal(t, entities.DailyTraffic{Date: "2024-05-19"}, report.Trends[5])
	assert.Equal(t, entities.AnalyticsSummary{
		TotalMessages:     12,
		Inbound:           8,
		Outbound:          4,
		ResponseRate:      50,
		OpenConversations: 4,
	}, report.Summary)
	assert.Equal(t, traffic.intents, report.Distribution)
}

func TestAnalyticsService_SummaryEdges(t *testing.T) {
	tests := []struct {
		name      string
		days      int
		rows      []entities.DailyTraffic
		wantDays  int
		wantRate  float64
		wantTotal int
	}{
		{name: "no traffic", days: 3, wantDays: 3},
		{name: "days capped", days: 365, wantDays: 90},
		{name: "rate capped at 100", days: 1, rows: []entities.DailyTraffic{{Date: "2024-05-20", Inbound: 1, Outbound: 3}},
			wantDays: 1, wantRate: 100, wantTotal: 4},
		{name: "rate rounded", days: 1, rows: []entities.DailyTraffic{{Date: "2024-05-20", Inbound: 3, Outbound: 1}},
			wantDays: 1, wantRate: 33.33, wantTotal: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAnalyticsFixture(&fakeTraffic{rows: tt.rows})
			report, err := svc.Summary(context.Background(), 1, tt.days)
			require.NoError(t, err)
			assert.Len(t, report.Trends, tt.wantDays)
			assert.Equal(t, tt.wantRate, report.Summary.ResponseRate)
			assert.Equal(t, tt.wantTotal, report.Summary.TotalMessages)
			assert.NotNil(t, report.Distribution)
		})
	}
}

func TestAnalyticsService_Settings(t *testing.T) {
	svc, users := newAnalyticsFixture(&fakeTraffic{})
	ctx := context.Background()

	got, err := svc.Settings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ar", got.Language)
	assert.Equal(t, OperatingHours{Start: "09:00", End: "18:00"}, got.OperatingHours)
	assert.Equal(t, []string{"ar", "en"}, got.SupportedLanguages)

	got, err = svc.UpdateSettings(ctx, 1, AdvancedSettingsInput{Language: " EN "})
	require.NoError(t, err)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "en", users.byID[1].Language)

	_, err = svc.UpdateSettings(ctx, 1, AdvancedSettingsInput{Language: "fr"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "language", verr.Errors[0].Field)

	_, err = svc.Settings(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
