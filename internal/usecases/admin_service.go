package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure"
	"github.com/loorksy/ERPwhatsapp/internal/infrastructure/llm"
)

const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"

	reasonAccountSuspended = "account_suspended"
	providerTestTimeout    = 20 * time.Second
	exportSheet            = "Sheet1"
)

type AdminUserStore interface {
	Counts(ctx context.Context) (total, active int, err error)
	ListWithUsage(ctx context.Context, f entities.UserFilter) ([]entities.UserUsage, int, error)
	GetByID(ctx context.Context, id int) (*entities.User, error)
	UpdateStatus(ctx context.Context, id int, status string) (*entities.User, error)
	UpdatePlan(ctx context.Context, id int, plan string) (*entities.User, error)
	Delete(ctx context.Context, id int) (bool, error)
}

type MessageTotals interface {
	CountAll(ctx context.Context) (int, error)
}

type AICallTotals interface {
	TotalAICalls(ctx context.Context) (int, error)
}

type PlanStore interface {
	List(ctx context.Context) ([]entities.Plan, error)
	Get(ctx context.Context, id string) (*entities.Plan, error)
	Update(ctx context.Context, id string, patch entities.PlanPatch) (*entities.Plan, error)
}

type AIProviderStore interface {
	List(ctx context.Context) ([]entities.AIProvider, error)
	Get(ctx context.Context, id int64) (*entities.AIProvider, error)
	Create(ctx context.Context, p *entities.AIProvider) (*entities.AIProvider, error)
	Update(ctx context.Context, p *entities.AIProvider) (*entities.AIProvider, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// TenantSessions is the slice of the session registry the console drives.
type TenantSessions interface {
	ConnectedUsers() []int
	Disconnect(userID int, reason string) error
	Logout(ctx context.Context, userID int) error
}

type AdminStats struct {
	TotalUsers        int `json:"totalUsers"`
	ActiveUsers       int `json:"activeUsers"`
	TotalMessages     int `json:"totalMessages"`
	APIUsage          int `json:"apiUsage"`
	ConnectedSessions int `json:"connectedSessions"`
}

type UserPage struct {
	Users    []entities.UserUsage `json:"users"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

type ProviderInput struct {
	Name            string          `json:"name" binding:"required"`
	Type            string          `json:"type" binding:"required"`
	Status          string          `json:"status"`
	APIKey          string          `json:"apiKey"`
	Endpoint        string          `json:"endpoint"`
	Models          []string        `json:"models"`
	CostPerThousand float64         `json:"costPerThousand"`
	Settings        json.RawMessage `json:"settings"`
}

type ProviderTestInput struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	APIKey   string `json:"apiKey"`
	Endpoint string `json:"endpoint"`
	Model    string `json:"model"`
}

type ProviderTestResult struct {
	OK      bool   `json:"ok"`
	Latency int64  `json:"latency"`
	Error   string `json:"error,omitempty"`
}

type AdminService struct {
	users     AdminUserStore
	messages  MessageTotals
	usage     AICallTotals
	plans     PlanStore
	providers AIProviderStore
	sessions  TenantSessions
	factory   ProviderFactory
	now       func() time.Time
}

func NewAdminService(users AdminUserStore, messages MessageTotals, usage AICallTotals, plans PlanStore,
	providers AIProviderStore, sessions TenantSessions) *AdminService {
	return &AdminService{
		users:     users,
		messages:  messages,
		usage:     usage,
		plans:     plans,
		providers: providers,
		sessions:  sessions,
		factory:   llm.New,
		now:       time.Now,
	}
}

func (s *AdminService) Stats(ctx context.Context) (*AdminStats, error) {
	total, active, err := s.users.Counts(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	calls, err := s.usage.TotalAICalls(ctx)
	if err != nil {
		return nil, err
	}
	return &AdminStats{
		TotalUsers:        total,
		ActiveUsers:       active,
		TotalMessages:     messages,
		APIUsage:          calls,
		ConnectedSessions: len(s.sessions.ConnectedUsers()),
	}, nil
}

func (s *AdminService) Users(ctx context.Context, f entities.UserFilter) (*UserPage, error) {
	v := &ValidationError{}
	if f.Status != "" && f.Status != entities.UserStatusActive && f.Status != entities.UserStatusSuspended {
		v.Add("status", "status must be active or suspended")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if f.Page < 1 {
		f.Page = 1
	}
	f.PageSize = clamp(f.PageSize, 20, 1, 100)
	f.Search = strings.TrimSpace(f.Search)

	users, total, err := s.users.ListWithUsage(ctx, f)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *AdminService) User(ctx context.Context, id int) (*entities.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// SetStatus suspends or reactivates a tenant. Suspension drops the live session.
func (s *AdminService) SetStatus(ctx context.Context, id int, status string) (*entities.User, error) {
	if status != entities.UserStatusActive && status != entities.UserStatusSuspended {
		v := &ValidationError{}
		v.Add("status", "status must be active or suspended")
		return nil, v
	}
	u, err := s.users.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if status == entities.UserStatusSuspended {
		if err := s.sessions.Disconnect(id, reasonAccountSuspended); err != nil && !errors.Is(err, infrastructure.ErrNoSession) {
			zap.L().Warn("admin: disconnect suspended tenant", zap.Int("user_id", id), zap.Error(err))
		}
	}
	return u, nil
}

func (s *AdminService) SetPlan(ctx context.Context, id int, plan string) (*entities.User, error) {
	plan = strings.TrimSpace(plan)
	p, err := s.plans.Get(ctx, plan)
	if err != nil {
		return nil, err
	}
	if p == nil {
		v := &ValidationError{}
		v.Add("plan", "unknown plan")
		return nil, v
	}
	u, err := s.users.UpdatePlan(ctx, id, p.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// DeleteUser unlinks the tenant's device before dropping the account.
func (s *AdminService) DeleteUser(ctx context.Context, id int) error {
	if err := s.sessions.Logout(ctx, id); err != nil && !errors.Is(err, infrastructure.ErrNoSession) {
		zap.L().Warn("admin: logout deleted tenant", zap.Int("user_id", id), zap.Error(err))
	}
	ok, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func exportRows(users []entities.UserUsage) []entities.UserExportRow {
	rows := make([]entities.UserExportRow, 0, len(users))
	for _, u := range users {
		company := ""
		if u.CompanyName != nil {
			company = *u.CompanyName
		}
		rows = append(rows, entities.UserExportRow{
			ID:          u.ID,
			Email:       u.Email,
			FullName:    u.FullName,
			CompanyName: company,
			Plan:        u.Plan,
			Status:      u.Status,
			CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
			Messages:    u.MessagesSent + u.MessagesReceived,
			AICalls:     u.AICalls,
		})
	}
	return rows
}

var exportHeader = []string{"id", "email", "full_name", "company", "plan", "status", "created_at", "messages", "api_calls"}

func cellName(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}

func writeXLSX(rows []entities.UserExportRow) ([]byte, error) {
	f := excelize.NewFile()
	for i, h := range exportHeader {
		f.SetCellValue(exportSheet, cellName(i, 1), h)
	}
	for r, row := range rows {
		values := []any{row.ID, row.Email, row.FullName, row.CompanyName, row.Plan, row.Status, row.CreatedAt, row.Messages, row.AICalls}
		for c, val := range values {
			f.SetCellValue(exportSheet, cellName(c, r+2), val)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export renders every user matching f. It returns the body, content type and file name.
func (s *AdminService) Export(ctx context.Context, f entities.UserFilter, format string) ([]byte, string, string, error) {
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportXLSX {
		v := &ValidationError{}
		v.Add("format", "format must be csv or xlsx")
		return nil, "", "", v
	}
	f.Page, f.PageSize = 1, 0
	users, _, err := s.users.ListWithUsage(ctx, f)
	if err != nil {
		return nil, "", "", err
	}
	rows := exportRows(users)
	name := fmt.Sprintf("users-%s.%s", s.now().Format("20060102"), format)

	if format == ExportXLSX {
		body, err := writeXLSX(rows)
		if err != nil {
			return nil, "", "", err
		}
		return body, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", name, nil
	}

	body, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, "", "", err
	}
	return body, "text/csv; charset=utf-8", name, nil
}

func (s *AdminService) Plans(ctx context.Context) ([]entities.Plan, error) {
	return s.plans.List(ctx)
}

func (s *AdminService) UpdatePlan(ctx context.Context, id string, patch entities.PlanPatch) (*entities.Plan, error) {
	v := &ValidationError{}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		v.Add("name", "name must not be empty")
	}
	if patch.Price != nil && *patch.Price < 0 {
		v.Add("price", "price must not be negative")
	}
	if patch.MessageLimit != nil && *patch.MessageLimit < 0 {
		v.Add("messageLimit", "messageLimit must not be negative")
	}
	if patch.WhatsAppAccounts != nil && *patch.WhatsAppAccounts < 1 {
		v.Add("whatsappAccounts", "whatsappAccounts must be at least 1")
	}
	if len(patch.Features) > 0 && !json.Valid(patch.Features) {
		v.Add("features", "features must be valid JSON")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	p, err := s.plans.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func masked(p entities.AIProvider) entities.AIProvider {
	if p.APIKey != "" {
		p.APIKey = p.MaskedKey()
	}
	return p
}

func (s *AdminService) Providers(ctx context.Context) ([]entities.AIProvider, error) {
	rows, err := s.providers.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entities.AIProvider, 0, len(rows))
	for _, p := range rows {
		out = append(out, masked(p))
	}
	return out, nil
}

func (in ProviderInput) validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "name is required")
	}
	if _, ok := llm.Lookup(in.Type); !ok {
		v.Add("type", "type must be one of openai, claude, gemini")
	}
	if in.Status != "" && in.Status != "active" && in.Status != "inactive" {
		v.Add("status", "status must be active or inactive")
	}
	if in.CostPerThousand < 0 {
		v.Add("costPerThousand", "costPerThousand must not be negative")
	}
	if len(in.Settings) > 0 && !json.Valid(in.Settings) {
		v.Add("settings", "settings must be valid JSON")
	}
	return v.Err()
}

func (in ProviderInput) entity(id int64) *entities.AIProvider {
	status := in.Status
	if status == "" {
		status = "active"
	}
	return &entities.AIProvider{
		ID:              id,
		Name:            strings.TrimSpace(in.Name),
		Type:            in.Type,
		Status:          status,
		APIKey:          in.APIKey,
		Endpoint:        strings.TrimSpace(in.Endpoint),
		Models:          in.Models,
		CostPerThousand: in.CostPerThousand,
		Settings:        in.Settings,
	}
}

func (s *AdminService) CreateProvider(ctx context.Context, in ProviderInput) (*entities.AIProvider, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.providers.Create(ctx, in.entity(0))
	if err != nil {
		return nil, err
	}
	out := masked(*p)
	return &out, nil
}

func (s *AdminService) UpdateProvider(ctx context.Context, id int64, in ProviderInput) (*entities.AIProvider, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.providers.Update(ctx, in.entity(id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	out := masked(*p)
	return &out, nil
}

func (s *AdminService) DeleteProvider(ctx context.Context, id int64) error {
	ok, err := s.providers.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// TestProvider sends one short prompt without retries and reports the round trip.
// Provider failures land in the result, not in the returned error.
func (s *AdminService) TestProvider(ctx context.Context, in ProviderTestInput) (*ProviderTestResult, error) {
	if in.ID != 0 {
		stored, err := s.providers.Get(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, ErrNotFound
		}
		if in.Type == "" {
			in.Type = stored.Type
		}
		if in.APIKey == "" {
			in.APIKey = stored.APIKey
		}
		if in.Endpoint == "" {
			in.Endpoint = stored.Endpoint
		}
		if in.Model == "" && len(stored.Models) > 0 {
			in.Model = stored.Models[0]
		}
	}
	meta, ok := llm.Lookup(in.Type)
	if !ok {
		v := &ValidationError{}
		v.Add("type", "type must be one of openai, claude, gemini")
		return nil, v
	}
	if in.Model == "" {
		in.Model = meta.DefaultModel
	}

	start := s.now()
	client, err := s.factory(in.Type, llm.Options{APIKey: in.APIKey, BaseURL: in.Endpoint, Timeout: providerTestTimeout})
	if err == nil {
		_, err = client.Complete(ctx, llm.Request{
			Model:     in.Model,
			Messages:  llm.BuildTurns("ping", nil),
			MaxTokens: 16,
		})
	}
	res := &ProviderTestResult{OK: err == nil, Latency: s.now().Sub(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	return res, nil
}
