package listing

// Lifecycle event types
const (
	EventActivated = "post.activated"
	EventExpired   = "post.expired"
	EventCancelled = "post.cancelled"
)

// Event announces a status change of a post
type Event struct {
	Type      string `json:"type"`
	JobPostID string `json:"job_post_id"`
	CompanyID string `json:"company_id"`
	Status    Status `json:"status"`
}

// Notifier receives lifecycle events after the store has committed them.
// Implementations must not block.
type Notifier interface {
	PostChanged(Event)
}

type nopNotifier struct{}

func (nopNotifier) PostChanged(Event) {}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Event)

// PostChanged implements Notifier
func (f NotifierFunc) PostChanged(e Event) { f(e) }
