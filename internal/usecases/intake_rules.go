package usecases

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/loorksy/ERPwhatsapp/internal/entities"
)

// NormalizePhone keeps only the digits of a phone or JID user part.
func NormalizePhone(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

type intentRule struct {
	intent     string
	keywords   []string
	confidence float64
}

// First match wins, so order matters.
var intentRules = []intentRule{
	{entities.IntentGreeting, []string{"hello", "hi", "hey", "مرحبا", "السلام"}, 0.65},
	{entities.IntentSupport, []string{"help", "issue", "problem", "support", "مشكلة", "دعم"}, 0.7},
	{entities.IntentPricing, []string{"price", "cost", "plan", "subscription", "سعر", "تكلفة"}, 0.72},
	{entities.IntentHandoff, []string{"agent", "human", "representative", "بشري", "موظف"}, 0.8},
}

// DetectIntent is a lowercase substring keyword classifier.
func DetectIntent(text string) entities.Intent {
	lowered := strings.ToLower(text)
	if strings.TrimFunc(lowered, unicode.IsSpace) == "" {
		return entities.Intent{Intent: entities.IntentUnknown, Confidence: 0}
	}
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return entities.Intent{Intent: rule.intent, Confidence: rule.confidence}
			}
		}
	}
	return entities.Intent{Intent: entities.IntentUnknown, Confidence: 0.3}
}

// OperatingHours is a daily HH:MM window in local time. Either bound empty means always open.
type OperatingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func parseClock(v string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m := 0
	if len(parts) == 2 && parts[1] != "" {
		m, err = strconv.Atoi(parts[1])
		if err != nil || m < 0 || m > 59 {
			return 0, false
		}
	}
	return h*60 + m, true
}

// Open reports whether now falls inside the window, bounds inclusive.
// A window whose end is not after its start wraps past midnight.
func (h OperatingHours) Open(now time.Time) bool {
	if h.Start == "" || h.End == "" {
		return true
	}
	start, ok1 := parseClock(h.Start)
	end, ok2 := parseClock(h.End)
	if !ok1 || !ok2 {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	if end <= start {
		return cur >= start || cur <= end
	}
	return cur >= start && cur <= end
}

// ShouldBotRespond gates automatic replies.
func ShouldBotRespond(conv *entities.Conversation, msg *entities.Message, hours OperatingHours, now time.Time) bool {
	if conv == nil || msg == nil {
		return false
	}
	if !conv.AcceptsBotReplies() {
		return false
	}
	if !hours.Open(now) {
		return false
	}
	return msg.HasContent()
}
