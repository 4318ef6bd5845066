// internal/domain/notification/preferences.go
package notification

const (
	// MaxTemplateLength bounds every stored template, in characters.
	MaxTemplateLength = 1500
	// DefaultWeeklyReviewTime is used when no valid HH:MM is stored.
	DefaultWeeklyReviewTime = "22:00"
	// DefaultTimezone is used when the record carries no valid IANA zone.
	DefaultTimezone = "Europe/Berlin"
)

// TriggerFlags holds the per-trigger enable switches.
type TriggerFlags struct {
	TaskCreated   bool `json:"taskCreated"`
	TaskCompleted bool `json:"taskCompleted"`
	TaskStart     bool `json:"taskStart"`
	WeeklyReview  bool `json:"weeklyReview"`
	EventAttended bool `json:"eventAttended"`
}

// Get returns the flag for kind.
func (f TriggerFlags) Get(kind TriggerKind) bool {
	switch kind {
	case TriggerTaskCreated:
		return f.TaskCreated
	case TriggerTaskCompleted:
		return f.TaskCompleted
	case TriggerTaskStart:
		return f.TaskStart
	case TriggerWeeklyReview:
		return f.WeeklyReview
	case TriggerEventAttended:
		return f.EventAttended
	}
	return false
}

func (f *TriggerFlags) set(kind TriggerKind, v bool) {
	switch kind {
	case TriggerTaskCreated:
		f.TaskCreated = v
	case TriggerTaskCompleted:
		f.TaskCompleted = v
	case TriggerTaskStart:
		f.TaskStart = v
	case TriggerWeeklyReview:
		f.WeeklyReview = v
	case TriggerEventAttended:
		f.EventAttended = v
	}
}

// CustomRule is a user-defined template bound to a trigger kind.
type CustomRule struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Enabled  bool        `json:"enabled"`
	Trigger  TriggerKind `json:"trigger"`
	Template string      `json:"template"`
}

// Preferences is the per-user notification configuration.
type Preferences struct {
	Enabled            bool                   `json:"enabled"`
	Phone              string                 `json:"phone"`
	Channel            Channel                `json:"channel"`
	Timezone           string                 `json:"timezone"`
	WeekStartsOnMonday bool                   `json:"weekStartsOnMonday"`
	Triggers           TriggerFlags           `json:"triggers"`
	WeeklyReviewTime   string                 `json:"weeklyReviewTime"`
	Templates          map[TriggerKind]string `json:"templates"`
	CustomRules        []CustomRule           `json:"customRules"`
}

// DefaultTemplates are the built-in message templates per trigger.
var DefaultTemplates = map[TriggerKind]string{
	TriggerTaskCreated:   "Neue Aufgabe: {title} (Projekt: {project}, Priorität: {priority})",
	TriggerTaskCompleted: "Erledigt: {title}. Stark gemacht!",
	TriggerTaskStart:     "Gleich geht's los: {title} startet um {startTime}.",
	TriggerWeeklyReview:  "{review}",
	TriggerEventAttended: "Termin wahrgenommen: {eventTitle}. Weiter so!",
}

// DefaultPreferences returns the record used when nothing valid is stored.
func DefaultPreferences() Preferences {
	templates := make(map[TriggerKind]string, len(DefaultTemplates))
	for k, v := range DefaultTemplates {
		templates[k] = v
	}
	return Preferences{
		Enabled:            false,
		Channel:            ChannelSMS,
		Timezone:           DefaultTimezone,
		WeekStartsOnMonday: true,
		Triggers: TriggerFlags{
			TaskCreated:   true,
			TaskCompleted: true,
			TaskStart:     true,
			WeeklyReview:  true,
			EventAttended: true,
		},
		WeeklyReviewTime: DefaultWeeklyReviewTime,
		Templates:        templates,
		CustomRules:      []CustomRule{},
	}
}

// TriggerEnabled reports whether both the global switch and the trigger's switch are on.
func (p Preferences) TriggerEnabled(kind TriggerKind) bool {
	return p.Enabled && p.Triggers.Get(kind)
}

// Template returns the user's template for kind, falling back to the built-in one.
func (p Preferences) Template(kind TriggerKind) string {
	if t, ok := p.Templates[kind]; ok && t != "" {
		return t
	}
	return DefaultTemplates[kind]
}

// RuleFor returns the first enabled custom rule bound to kind.
func (p Preferences) RuleFor(kind TriggerKind) (CustomRule, bool) {
	for _, r := range p.CustomRules {
		if r.Enabled && r.Trigger == kind {
			return r, true
		}
	}
	return CustomRule{}, false
}

// MessageTemplate picks the template a dispatch for kind should render:
// an enabled custom rule first, then the per-trigger template.
func (p Preferences) MessageTemplate(kind TriggerKind) string {
	if r, ok := p.RuleFor(kind); ok {
		return r.Template
	}
	return p.Template(kind)
}
