package usecases

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
)

const dayLayout = "2006-01-02"

type TrafficStore interface {
	Traffic(ctx context.Context, userID int, since time.Time) ([]entities.DailyTraffic, error)
	IntentDistribution(ctx context.Context, userID int, since time.Time) ([]entities.NamedCount, error)
}

type OpenConversationCounter interface {
	CountOpen(ctx context.Context, userID int) (int, error)
}

type LanguageStore interface {
	GetByID(ctx context.Context, id int) (*entities.User, error)
	UpdateLanguage(ctx context.Context, id int, language string) error
}

type AnalyticsReport struct {
	Summary      entities.AnalyticsSummary `json:"summary"`
	Trends       []entities.DailyTraffic   `json:"trends"`
	Distribution []entities.NamedCount     `json:"distribution"`
}

type AdvancedSettings struct {
	Language           string         `json:"language"`
	OperatingHours     OperatingHours `json:"operatingHours"`
	SupportedLanguages []string       `json:"supportedLanguages"`
}

type AdvancedSettingsInput struct {
	Language string `json:"language" binding:"required"`
}

type AnalyticsService struct {
	traffic TrafficStore
	convs   OpenConversationCounter
	users   LanguageStore
	hours   OperatingHours
	now     func() time.Time
}

func NewAnalyticsService(traffic TrafficStore, convs OpenConversationCounter, users LanguageStore, hours OperatingHours) *AnalyticsService {
	return &AnalyticsService{traffic: traffic, convs: convs, users: users, hours: hours, now: time.Now}
}

// Summary reports the last days calendar days, today included. Days without
// traffic appear in the trend with zero counts.
func (s *AnalyticsService) Summary(ctx context.Context, userID, days int) (*AnalyticsReport, error) {
	days = clamp(days, 7, 1, 90)
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	since := today.AddDate(0, 0, -(days - 1))

	rows, err := s.traffic.Traffic(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	intents, err := s.traffic.IntentDistribution(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	open, err := s.convs.CountOpen(ctx, userID)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]entities.DailyTraffic, len(rows))
	for _, r := range rows {
		byDay[r.Date] = r
	}
	report := &AnalyticsReport{Trends: make([]entities.DailyTraffic, 0, days), Distribution: intents}
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		row, ok := byDay[key]
		if !ok {
			row = entities.DailyTraffic{Date: key}
		}
		report.Trends = append(report.Trends, row)
		report.Summary.Inbound += row.Inbound
		report.Summary.Outbound += row.Outbound
	}
	if report.Distribution == nil {
		report.Distribution = []entities.NamedCount{}
	}

	report.Summary.TotalMessages = report.Summary.Inbound + report.Summary.Outbound
	report.Summary.OpenConversations = open
	if report.Summary.Inbound > 0 {
		rate := float64(report.Summary.Outbound) / float64(report.Summary.Inbound) * 100
		report.Summary.ResponseRate = math.Round(math.Min(rate, 100)*100) / 100
	}
	return report, nil
}

func (s *AnalyticsService) Settings(ctx context.Context, userID int) (*AdvancedSettings, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	lang := u.Language
	if lang == "" {
		lang = infrastructure.DefaultLanguage
	}
	return &AdvancedSettings{
		Language:           lang,
		OperatingHours:     s.hours,
		SupportedLanguages: infrastructure.SupportedLanguages(),
	}, nil
}

// UpdateSettings persists the tenant language. Operating hours are process-wide.
func (s *AnalyticsService) UpdateSettings(ctx context.Context, userID int, in AdvancedSettingsInput) (*AdvancedSettings, error) {
	lang := strings.ToLower(strings.TrimSpace(in.Language))
	if !infrastructure.SupportedLanguage(lang) {
		v := &ValidationError{}
		v.Add("language", "language must be one of "+strings.Join(infrastructure.SupportedLanguages(), ", "))
		return nil, v
	}
	if err := s.users.UpdateLanguage(ctx, userID, lang); err != nil {
		return nil, err
	}
	return s.Settings(ctx, userID)
}
