// internal/domain/notification/shared_types.go
package notification

// TriggerKind identifies the event a notification is bound to.
type TriggerKind string

const (
	TriggerTaskCreated   TriggerKind = "task-created"
	TriggerTaskCompleted TriggerKind = "task-completed"
	TriggerTaskStart     TriggerKind = "task-start"
	TriggerWeeklyReview  TriggerKind = "weekly-review"
	TriggerEventAttended TriggerKind = "event-attended"
)

// AllTriggers lists every trigger kind in a stable order.
var AllTriggers = []TriggerKind{
	TriggerTaskCreated,
	TriggerTaskCompleted,
	TriggerTaskStart,
	TriggerWeeklyReview,
	TriggerEventAttended,
}

// ParseTrigger returns the trigger kind for s, or false if s is not a known kind.
func ParseTrigger(s string) (TriggerKind, bool) {
	for _, k := range AllTriggers {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// IsRuleTrigger reports whether custom rules may bind to the trigger.
func (k TriggerKind) IsRuleTrigger() bool {
	switch k {
	case TriggerTaskCreated, TriggerTaskCompleted, TriggerEventAttended:
		return true
	default:
		return false
	}
}

// Channel is a messaging transport with its own address format and sender identity.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// ParseChannel returns the channel for s, or false if s is not sms or whatsapp.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelSMS, ChannelWhatsApp:
		return Channel(s), true
	}
	return "", false
}

// MarkerStatus is the lifecycle state of a delivery marker row.
type MarkerStatus string

const (
	MarkerPending MarkerStatus = "pending" // claimed by a scheduler, send outstanding
	MarkerSent    MarkerStatus = "sent"
)
