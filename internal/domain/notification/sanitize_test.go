package notification

import (
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in       string
		fallback string
		want     string
	}{
		{"07:30", "22:00", "07:30"},
		{"  21:15 ", "22:00", "21:15"},
		{"7:30", "22:00", "22:00"},
		{"", "22:00", "22:00"},
		{"abc", "", DefaultWeeklyReviewTime},
		{"21:15:00", "20:00", "20:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTime(tt.in, tt.fallback), "input %q", tt.in)
	}
}

func TestParsePreferences_DefaultsOnBadBlob(t *testing.T) {
	for _, blob := range []string{"", "not json", "[1,2,3]", "null", `"str"`} {
		prefs := ParsePreferences([]byte(blob), "")
		assert.Equal(t, DefaultPreferences(), prefs, "blob %q", blob)
	}
}

func TestParsePreferences_DefaultTimezoneOverride(t *testing.T) {
	prefs := ParsePreferences(nil, "America/New_York")
	assert.Equal(t, "America/New_York", prefs.Timezone)

	prefs = ParsePreferences(nil, "Not/AZone")
	assert.Equal(t, DefaultTimezone, prefs.Timezone)
}

func TestParsePreferences_FieldsCheckedIndependently(t *testing.T) {
	blob := `{
		"enabled": true,
		"phone": "whatsapp:+4915112345678",
		"channel": "WhatsApp",
		"timezone": "Mars/Olympus",
		"weekStartsOnMonday": "yes",
		"weeklyReviewTime": "9:00",
		"triggers": {"taskCreated": false, "weeklyReview": "on"},
		"templates": {"task-completed": "Fertig: {title}", "task-created": "   "}
	}`
	prefs := ParsePreferences([]byte(blob), "")

	assert.True(t, prefs.Enabled)
	assert.Equal(t, "+4915112345678", prefs.Phone)
	assert.Equal(t, ChannelWhatsApp, prefs.Channel)
	assert.Equal(t, DefaultTimezone, prefs.Timezone)
	assert.True(t, prefs.WeekStartsOnMonday, "non-bool keeps default")
	assert.Equal(t, "22:00", prefs.WeeklyReviewTime)
	assert.False(t, prefs.Triggers.TaskCreated)
	assert.True(t, prefs.Triggers.WeeklyReview, "non-bool keeps default")
	assert.Equal(t, "Fertig: {title}", prefs.Template(TriggerTaskCompleted))
	assert.Equal(t, DefaultTemplates[TriggerTaskCreated], prefs.Template(TriggerTaskCreated))
}

func TestParsePreferences_InvalidPhoneCleared(t *testing.T) {
	prefs := ParsePreferences([]byte(`{"phone": "+49123"}`), "")
	assert.Equal(t, "", prefs.Phone)
}

func TestParsePreferences_TemplateTruncated(t *testing.T) {
	long := strings.Repeat("ä", MaxTemplateLength+20)
	prefs := ParsePreferences([]byte(`{"templates": {"task-start": "`+long+`"}}`), "")
	assert.Equal(t, MaxTemplateLength, len([]rune(prefs.Template(TriggerTaskStart))))
}

func TestParsePreferences_CustomRulesSanitizedItemByItem(t *testing.T) {
	blob := `{"customRules": [
		{"id": "r1", "name": "Done", "enabled": true, "trigger": "task-completed", "template": "Top: {title}"},
		{"id": "r2", "trigger": "weekly-review", "template": "not allowed"},
		{"id": "r3", "trigger": "bogus", "template": "x"},
		{"id": "r4", "trigger": "task-created", "template": ""},
		"garbage",
		{"name": "No id", "trigger": "event-attended", "template": "Dabei: {eventTitle}", "enabled": false}
	]}`
	prefs := ParsePreferences([]byte(blob), "")

	require.Len(t, prefs.CustomRules, 2)
	assert.Equal(t, "r1", prefs.CustomRules[0].ID)
	assert.Equal(t, TriggerTaskCompleted, prefs.CustomRules[0].Trigger)
	assert.NotEmpty(t, prefs.CustomRules[1].ID, "missing id is generated")
	assert.Equal(t, "No id", prefs.CustomRules[1].Name)
	assert.False(t, prefs.CustomRules[1].Enabled)
}

func TestPreferences_MessageTemplate(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.CustomRules = []CustomRule{
		{ID: "off", Enabled: false, Trigger: TriggerTaskCompleted, Template: "disabled"},
		{ID: "on", Enabled: true, Trigger: TriggerTaskCompleted, Template: "rule {title}"},
	}
	assert.Equal(t, "rule {title}", prefs.MessageTemplate(TriggerTaskCompleted))
	assert.Equal(t, DefaultTemplates[TriggerTaskCreated], prefs.MessageTemplate(TriggerTaskCreated))
}

func TestPreferences_TriggerEnabled(t *testing.T) {
	prefs := DefaultPreferences()
	assert.False(t, prefs.TriggerEnabled(TriggerWeeklyReview), "global switch off by default")

	prefs.Enabled = true
	assert.True(t, prefs.TriggerEnabled(TriggerWeeklyReview))

	prefs.Triggers.WeeklyReview = false
	assert.False(t, prefs.TriggerEnabled(TriggerWeeklyReview))
}

func TestPreferences_ReviewClock(t *testing.T) {
	prefs := DefaultPreferences()
	prefs.WeeklyReviewTime = "19:45"
	h, m := prefs.ReviewClock()
	assert.Equal(t, 19, h)
	assert.Equal(t, 45, m)

	prefs.WeeklyReviewTime = "99:99"
	h, m = prefs.ReviewClock()
	assert.Equal(t, 22, h)
	assert.Equal(t, 0, m)
}
