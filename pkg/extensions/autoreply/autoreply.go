// Package autoreply integrates vacation messages with Postfix.
//
// While enabled it maintains two lookup tables for the MTA:
//
//	postfix_autoreply_transports  autoreply.<domain> -> autoreply:
//	postfix_autoreply_aliases     <mailbox> -> <mailbox>@autoreply.<domain>
//
// and stores the message each mailbox replies with.
package autoreply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/events"
	"github.com/marmos91/postmaster/pkg/extensions"
)

const (
	// Name is the persisted extension name.
	Name = "postfix_autoreply"

	// TransportMethod is the Postfix transport the replies are piped to.
	TransportMethod = "autoreply:"
)

// ErrNotLoaded is returned when the extension is used while disabled.
var ErrNotLoaded = errors.New("autoreply extension is not loaded")

// Extension is the Postfix auto-reply extension.
type Extension struct {
	mu   sync.RWMutex
	host *extensions.Host
	subs []events.Subscription
}

// New creates the extension.
func New() *Extension {
	return &Extension{}
}

var _ extensions.Extension = (*Extension)(nil)

func (e *Extension) Name() string     { return Name }
func (e *Extension) Label() string    { return "Postfix autoreply" }
func (e *Extension) Version() string  { return "1.0" }
func (e *Extension) NeedsMedia() bool { return false }

func (e *Extension) Description() string {
	return "Auto-reply (vacation) functionality using Postfix"
}

// TransportDomain returns the transport domain of a hosted domain.
func TransportDomain(domain string) string {
	return "autoreply." + domain
}

// AutoreplyAddress returns the address mail is copied to for fullAddress.
func AutoreplyAddress(fullAddress string) string {
	at := strings.LastIndex(fullAddress, "@")
	return fullAddress + "@" + TransportDomain(fullAddress[at+1:])
}

// Load migrates the extension tables and subscribes to lifecycle events.
func (e *Extension) Load(ctx context.Context, host *extensions.Host) error {
	if err := host.DB.WithContext(ctx).AutoMigrate(&Transport{}, &Alias{}, &Message{}); err != nil {
		return fmt.Errorf("failed to migrate autoreply tables: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.host = host
	e.subs = []events.Subscription{
		host.Bus.Subscribe(events.DomainCreated, e.onDomainCreated),
		host.Bus.Subscribe(events.DomainModified, e.onDomainModified),
		host.Bus.Subscribe(events.DomainDeleted, e.onDomainDeleted),
		host.Bus.Subscribe(events.MailboxCreated, e.onMailboxCreated),
		host.Bus.Subscribe(events.MailboxModified, e.onMailboxModified),
		host.Bus.Subscribe(events.MailboxDeleted, e.onMailboxDeleted),
	}
	return nil
}

// Init creates the missing transports and aliases of existing domains and
// mailboxes.
func (e *Extension) Init(ctx context.Context) error {
	db, host, err := e.db(ctx)
	if err != nil {
		return err
	}

	domains, err := host.Store.ListDomains(ctx)
	if err != nil {
		return err
	}
	for _, d := range domains {
		if err := ensureTransport(db, d.Name); err != nil {
			return err
		}
	}

	mailboxes, err := host.Store.ListMailboxes(ctx)
	if err != nil {
		return err
	}
	for _, mb := range mailboxes {
		if err := ensureAlias(db, mb.FullAddress()); err != nil {
			return err
		}
	}

	logger.InfoCtx(ctx, "Autoreply tables synchronised",
		"domains", len(domains), "mailboxes", len(mailboxes))
	return nil
}

// Destroy unsubscribes every handler. The tables are kept.
func (e *Extension) Destroy(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.host != nil {
		for _, sub := range e.subs {
			e.host.Bus.Unsubscribe(sub)
		}
	}
	e.subs = nil
	e.host = nil
	return nil
}

func (e *Extension) db(ctx context.Context) (*gorm.DB, *extensions.Host, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.host == nil {
		return nil, nil, ErrNotLoaded
	}
	return e.host.DB.WithContext(ctx), e.host, nil
}

// ============================================
// MESSAGES
// ============================================

// GetMessage returns the auto-reply of a mailbox, or a disabled empty
// message when none was stored.
func (e *Extension) GetMessage(ctx context.Context, mailboxID string) (*Message, error) {
	db, _, err := e.db(ctx)
	if err != nil {
		return nil, err
	}

	var msg Message
	err = db.Where("mailbox_id = ?", mailboxID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Message{MailboxID: mailboxID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetMessage stores the auto-reply of a mailbox.
func (e *Extension) SetMessage(ctx context.Context, msg *Message) error {
	db, _, err := e.db(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return models.NewAdminError("subject is required")
	}
	if msg.FromDate != nil && msg.UntilDate != nil && msg.UntilDate.Before(*msg.FromDate) {
		return models.NewAdminError("end date must be after start date")
	}

	msg.UpdatedAt = time.Now()
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mailbox_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject", "content", "enabled", "from_date", "until_date", "updated_at"}),
	}).Create(msg).Error
}

// ============================================
// EVENT HANDLERS
// ============================================

func (e *Extension) onDomainCreated(ctx context.Context, ev events.Event) error {
	db, _, err := e.db(ctx)
	if err != nil {
		return err
	}
	return ensureTransport(db, ev.Object.ObjectName())
}

// inDomain matches alias addresses under the domain given by domainPattern.
const inDomain = `full_address LIKE ? ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func domainPattern(domain string) string {
	return "%@" + likeEscaper.Replace(domain)
}

func (e *Extension) onDomainModified(ctx context.Context, ev events.Event) error {
	if ev.OldName == "" || ev.OldName == ev.Object.ObjectName() {
		return nil
	}
	db, _, err := e.db(ctx)
	if err != nil {
		return err
	}
	oldName, newName := ev.OldName, ev.Object.ObjectName()

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Transport{}).
			Where("domain = ?", TransportDomain(oldName)).
			Update("domain", TransportDomain(newName)).Error; err != nil {
			return err
		}

		var aliases []Alias
		if err := tx.Where(inDomain, domainPattern(oldName)).Find(&aliases).Error; err != nil {
			return err
		}
		for _, a := range aliases {
			local := strings.TrimSuffix(a.FullAddress, "@"+oldName)
			full := local + "@" + newName
			if err := tx.Model(&Alias{}).Where("id = ?", a.ID).Updates(map[string]any{
				"full_address":      full,
				"autoreply_address": AutoreplyAddress(full),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Extension) onDomainDeleted(ctx context.Context, ev events.Event) error {
	db, _, err := e.db(ctx)
	if err != nil {
		return err
	}
	name := ev.Object.ObjectName()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("domain = ?", TransportDomain(name)).Delete(&Transport{}).Error; err != nil {
			return err
		}
		return tx.Where(inDomain, domainPattern(name)).Delete(&Alias{}).Error
	})
}

func (e *Extension) onMailboxCreated(ctx context.Context, ev events.Event) error {
	db, _, err := e.db(ctx)
	if err != nil {
		return err
	}
	return ensureAlias(db, ev.Object.ObjectName())
}

func (e *Extension) onMailboxModified(ctx context.Context, ev events.Event) error {
	if ev.OldName == "" || ev.OldName == ev.Object.ObjectName() {
		return nil
	}
	db, _, err := e.db(ctx)
	if err != nil {
		return err
	}
	full := ev.Object.ObjectName()
	res := db.Model(&Alias{}).Where("full_address = ?", ev.OldName).Updates(map[string]any{
		"full_address":      full,
		"autoreply_address": AutoreplyAddress(full),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ensureAlias(db, full)
	}
	return nil
}

func (e *Extension) onMailboxDeleted(ctx context.Context, ev events.Event) error {
	db, _, err := e.db(ctx)
	if err != nil {
		return err
	}
	mb, ok := ev.Object.(*models.Mailbox)
	if !ok {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("full_address = ?", mb.FullAddress()).Delete(&Alias{}).Error; err != nil {
			return err
		}
		return tx.Where("mailbox_id = ?", mb.ID).Delete(&Message{}).Error
	})
}

// ensureTransport creates the transport of domain unless it exists.
func ensureTransport(db *gorm.DB, domain string) error {
	t := Transport{Domain: TransportDomain(domain), Method: TransportMethod}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&t).Error
}

// ensureAlias creates the auto-reply alias of fullAddress unless it exists.
func ensureAlias(db *gorm.DB, fullAddress string) error {
	a := Alias{FullAddress: fullAddress, AutoreplyAddress: AutoreplyAddress(fullAddress)}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&a).Error
}
