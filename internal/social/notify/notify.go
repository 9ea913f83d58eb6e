package notify

import (
	"context"
	"sync"
	"time"

	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"
	"social-connect/internal/shared/utils"
)

// Notification is a user-visible report of a failed action
type Notification struct {
	IdentityID string    `json:"identityId,omitempty"`
	Action     string    `json:"action"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier surfaces failures to the user
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Failure builds a notification naming action from err
func Failure(ctx context.Context, action string, err error) Notification {
	identityID, _ := utils.GetIdentityIDFromContext(ctx)
	return Notification{
		IdentityID: identityID,
		Action:     action,
		Message:    err.Error(),
		Code:       errors.CodeOf(err),
		At:         time.Now().UTC(),
	}
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &LogNotifier{log: log.WithComponent("notify")}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	l.log.WithContext(ctx).WithFields(map[string]interface{}{
		"action": n.Action,
		"code":   n.Code,
	}).Warnf("%s failed: %s", n.Action, n.Message)
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Actions returns the recorded action names in order
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.all))
	for i, n := range r.all {
		out[i] = n.Action
	}
	return out
}

// Inbox delivers notifications to per-identity listeners
type Inbox struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]chan Notification
}

// NewInbox creates an empty Inbox
func NewInbox() *Inbox {
	return &Inbox{subs: make(map[string]map[uint64]chan Notification)}
}

// Subscribe returns a buffered channel of notifications addressed to identityID.
// Notifications are dropped for listeners that do not keep up.
func (i *Inbox) Subscribe(identityID string) (<-chan Notification, func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextID
	i.nextID++
	ch := make(chan Notification, 16)
	if i.subs[identityID] == nil {
		i.subs[identityID] = make(map[uint64]chan Notification)
	}
	i.subs[identityID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			i.mu.Lock()
			defer i.mu.Unlock()
			delete(i.subs[identityID], id)
			if len(i.subs[identityID]) == 0 {
				delete(i.subs, identityID)
			}
			close(ch)
		})
	}
}

func (i *Inbox) Notify(ctx context.Context, n Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, ch := range i.subs[n.IdentityID] {
		select {
		case ch <- n:
		default:
		}
	}
}
