// internal/domain/notification/sanitize.go
package notification

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"reminder_service/internal/domain/phone"
)

var timeOfDayPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// NormalizeTime returns the trimmed value if it looks like HH:MM, else fallback.
// An empty fallback means DefaultWeeklyReviewTime.
func NormalizeTime(value, fallback string) string {
	if fallback == "" {
		fallback = DefaultWeeklyReviewTime
	}
	v := strings.TrimSpace(value)
	if timeOfDayPattern.MatchString(v) {
		return v
	}
	return fallback
}

// ParsePreferences decodes a persisted blob into a fully populated record.
// It never fails: an absent, unparsable or structurally wrong blob yields the
// defaults, and every field is checked on its own. defaultTimezone replaces
// DefaultTimezone when non-empty.
func ParsePreferences(blob []byte, defaultTimezone string) Preferences {
	prefs := DefaultPreferences()
	if defaultTimezone != "" {
		if _, err := time.LoadLocation(defaultTimezone); err == nil {
			prefs.Timezone = defaultTimezone
		}
	}
	if len(blob) == 0 {
		return prefs
	}

	var raw map[string]any
	if err := json.Unmarshal(blob, &raw); err != nil || raw == nil {
		return prefs
	}
	return SanitizePreferences(raw, prefs)
}

// SanitizePreferences overlays the well-typed fields of raw onto base.
func SanitizePreferences(raw map[string]any, base Preferences) Preferences {
	prefs := base

	if v, ok := raw["enabled"].(bool); ok {
		prefs.Enabled = v
	}
	if v, ok := raw["phone"].(string); ok {
		if n, err := phone.Normalize(v); err == nil {
			prefs.Phone = n
		} else {
			prefs.Phone = ""
		}
	}
	if v, ok := raw["channel"].(string); ok {
		if ch, ok := ParseChannel(strings.ToLower(strings.TrimSpace(v))); ok {
			prefs.Channel = ch
		}
	}
	if v, ok := raw["timezone"].(string); ok {
		v = strings.TrimSpace(v)
		if v != "" {
			if _, err := time.LoadLocation(v); err == nil {
				prefs.Timezone = v
			}
		}
	}
	if v, ok := raw["weekStartsOnMonday"].(bool); ok {
		prefs.WeekStartsOnMonday = v
	}
	if v, ok := raw["weeklyReviewTime"].(string); ok {
		prefs.WeeklyReviewTime = NormalizeTime(v, DefaultWeeklyReviewTime)
	}

	if triggers, ok := raw["triggers"].(map[string]any); ok {
		for _, kind := range AllTriggers {
			if v, ok := triggers[triggerFlagKey(kind)].(bool); ok {
				prefs.Triggers.set(kind, v)
			}
		}
	}

	templates := make(map[TriggerKind]string, len(AllTriggers))
	for _, kind := range AllTriggers {
		templates[kind] = base.Template(kind)
	}
	if stored, ok := raw["templates"].(map[string]any); ok {
		for _, kind := range AllTriggers {
			v, ok := stored[string(kind)].(string)
			if !ok {
				v, ok = stored[triggerFlagKey(kind)].(string)
			}
			if !ok {
				continue
			}
			if t := clampTemplate(v); t != "" {
				templates[kind] = t
			} else {
				templates[kind] = DefaultTemplates[kind]
			}
		}
	}
	prefs.Templates = templates

	if list, ok := raw["customRules"].([]any); ok {
		rules := make([]CustomRule, 0, len(list))
		for _, item := range list {
			if rule, ok := sanitizeRule(item); ok {
				rules = append(rules, rule)
			}
		}
		prefs.CustomRules = rules
	}

	return prefs
}

// sanitizeRule returns false when the item must be dropped.
func sanitizeRule(item any) (CustomRule, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return CustomRule{}, false
	}
	triggerRaw, _ := m["trigger"].(string)
	kind, ok := ParseTrigger(strings.TrimSpace(triggerRaw))
	if !ok || !kind.IsRuleTrigger() {
		return CustomRule{}, false
	}
	tmplRaw, _ := m["template"].(string)
	tmpl := clampTemplate(tmplRaw)
	if tmpl == "" {
		return CustomRule{}, false
	}

	rule := CustomRule{Trigger: kind, Template: tmpl, Enabled: true}
	if id, ok := m["id"].(string); ok && strings.TrimSpace(id) != "" {
		rule.ID = strings.TrimSpace(id)
	} else {
		rule.ID = uuid.NewString()
	}
	if name, ok := m["name"].(string); ok {
		rule.Name = strings.TrimSpace(name)
	}
	if enabled, ok := m["enabled"].(bool); ok {
		rule.Enabled = enabled
	}
	return rule, true
}

// clampTemplate trims surrounding whitespace and cuts the template to
// MaxTemplateLength characters. Empty means "not usable".
func clampTemplate(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxTemplateLength {
		return s
	}
	return string([]rune(s)[:MaxTemplateLength])
}

func triggerFlagKey(kind TriggerKind) string {
	switch kind {
	case TriggerTaskCreated:
		return "taskCreated"
	case TriggerTaskCompleted:
		return "taskCompleted"
	case TriggerTaskStart:
		return "taskStart"
	case TriggerWeeklyReview:
		return "weeklyReview"
	case TriggerEventAttended:
		return "eventAttended"
	}
	return string(kind)
}

// Location returns the user's time zone, UTC if it cannot be loaded.
func (p Preferences) Location() *time.Location {
	if loc, err := time.LoadLocation(p.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// ReviewClock splits WeeklyReviewTime into hour and minute. Out of range values
// fall back to DefaultWeeklyReviewTime.
func (p Preferences) ReviewClock() (hour, minute int) {
	t, err := time.Parse("15:04", NormalizeTime(p.WeeklyReviewTime, DefaultWeeklyReviewTime))
	if err != nil {
		t, _ = time.Parse("15:04", DefaultWeeklyReviewTime)
	}
	return t.Hour(), t.Minute()
}
