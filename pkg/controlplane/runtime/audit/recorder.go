package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
)

// LoggerName is stored in the logger column of every recorded entry.
const LoggerName = "postmaster.admin"

type verb struct {
	word  string
	level models.AuditLevel
}

var (
	added    = verb{"added", models.AuditLevelInfo}
	modified = verb{"modified", models.AuditLevelWarning}
	deleted  = verb{"deleted", models.AuditLevelCritical}
)

var recorded = map[events.Name]verb{
	events.AccountCreated:      added,
	events.AccountAutoCreated:  added,
	events.AccountModified:     modified,
	events.RoleChanged:         modified,
	events.PasswordUpdated:     modified,
	events.AccountDeleted:      deleted,
	events.DomainCreated:       added,
	events.DomainModified:      modified,
	events.DomainDeleted:       deleted,
	events.DomainAliasCreated:  added,
	events.DomainAliasModified: modified,
	events.DomainAliasDeleted:  deleted,
	events.MailboxCreated:      added,
	events.MailboxModified:     modified,
	events.MailboxDeleted:      deleted,
	events.AliasCreated:        added,
	events.AliasModified:       modified,
	events.AliasDeleted:        deleted,
}

var objectLabels = map[models.ObjectType]string{
	models.ObjectTypeAccount:     "Account",
	models.ObjectTypeDomain:      "Domain",
	models.ObjectTypeDomainAlias: "Domain alias",
	models.ObjectTypeMailbox:     "Mailbox",
	models.ObjectTypeAlias:       "Alias",
}

// Recorder writes an audit entry for every lifecycle event.
type Recorder struct {
	store store.AuditStore
	bus   *events.Bus
	now   func() time.Time

	mu   sync.Mutex
	subs []events.Subscription
}

// NewRecorder creates a Recorder. Call Start to subscribe it.
func NewRecorder(s store.AuditStore, bus *events.Bus) *Recorder {
	return &Recorder{store: s, bus: bus, now: time.Now}
}

// Start subscribes the recorder to the lifecycle events.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs != nil {
		return
	}
	for name := range recorded {
		r.subs = append(r.subs, r.bus.Subscribe(name, r.handle))
	}
	r.subs = append(r.subs,
		r.bus.Subscribe(events.ExtEnabled, r.handle),
		r.bus.Subscribe(events.ExtDisabled, r.handle),
	)
}

// Stop unsubscribes the recorder.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		r.bus.Unsubscribe(sub)
	}
	r.subs = nil
}

func (r *Recorder) handle(ctx context.Context, ev events.Event) error {
	msg, lvl := Describe(ev)
	if msg == "" {
		return nil
	}

	attrs := []any{logger.Event(string(ev.Name))}
	switch lvl {
	case models.AuditLevelCritical:
		logger.ErrorCtx(ctx, msg, attrs...)
	case models.AuditLevelWarning:
		logger.WarnCtx(ctx, msg, attrs...)
	default:
		logger.InfoCtx(ctx, msg, attrs...)
	}

	entry := &models.AuditLog{Date: r.now(), Message: msg, Level: lvl, Logger: LoggerName}
	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// Describe returns the history message and level of an event, or an empty
// message for events that are not recorded.
func Describe(ev events.Event) (string, models.AuditLevel) {
	switch ev.Name {
	case events.ExtEnabled:
		return fmt.Sprintf("Extension '%s' enabled by user %s", ev.Extension, ev.ActorName()), models.AuditLevelInfo
	case events.ExtDisabled:
		return fmt.Sprintf("Extension '%s' disabled by user %s", ev.Extension, ev.ActorName()), models.AuditLevelWarning
	}

	v, ok := recorded[ev.Name]
	if !ok || ev.Object == nil {
		return "", ""
	}
	label := objectLabels[ev.Object.ObjectRef().Type]
	if label == "" {
		label = "Object"
	}

	msg := fmt.Sprintf("%s '%s' %s by user %s", label, ev.Object.ObjectName(), v.word, ev.ActorName())
	switch ev.Name {
	case events.RoleChanged:
		msg += fmt.Sprintf(" (role set to %s)", ev.Role)
	case events.PasswordUpdated:
		msg += " (password changed)"
	}
	return msg, v.level
}
