package models

import (
	"fmt"
	"strings"
	"time"
)

// Mailbox is a local mail storage owned by an account.
type Mailbox struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Address   string    `gorm:"not null;size:252;uniqueIndex:idx_mailbox_address,priority:1" json:"address"` // local part
	DomainID  string    `gorm:"not null;size:36;uniqueIndex:idx_mailbox_address,priority:2;index" json:"domain_id"`
	Domain    *Domain   `gorm:"foreignKey:DomainID" json:"domain,omitempty"`
	AccountID string    `gorm:"not null;size:36;index" json:"account_id"`
	Quota     int       `gorm:"default:0" json:"quota"` // MB, 0 = domain default
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Mailbox.
func (Mailbox) TableName() string {
	return "mailboxes"
}

// ObjectRef returns the grant target reference of the mailbox.
func (m *Mailbox) ObjectRef() ObjectRef {
	return ObjectRef{Type: ObjectTypeMailbox, ID: m.ID}
}

// ObjectName returns the full address when the domain is loaded.
func (m *Mailbox) ObjectName() string {
	return m.FullAddress()
}

// FullAddress returns "local@domain", or the local part alone when the
// domain is not loaded.
func (m *Mailbox) FullAddress() string {
	if m.Domain == nil {
		return m.Address
	}
	return m.Address + "@" + m.Domain.Name
}

// Validate checks if the mailbox has a valid configuration.
func (m *Mailbox) Validate() error {
	if err := validateLocalPart(m.Address); err != nil {
		return err
	}
	if m.DomainID == "" {
		return fmt.Errorf("domain is required")
	}
	if m.AccountID == "" {
		return fmt.Errorf("account is required")
	}
	return nil
}

// AliasKind is derived from an alias' recipients.
type AliasKind string

const (
	// AliasKindAlias redirects to a single hosted mailbox.
	AliasKindAlias AliasKind = "alias"
	// AliasKindForward redirects to an address outside the hosted domains.
	AliasKindForward AliasKind = "forward"
	// AliasKindDistributionList redirects to two or more recipients.
	AliasKindDistributionList AliasKind = "dlist"
)

// Alias redirects mail sent to local@domain to its recipients.
type Alias struct {
	ID         string           `gorm:"primaryKey;size:36" json:"id"`
	Address    string           `gorm:"not null;size:254;uniqueIndex:idx_alias_address,priority:1" json:"address"` // local part
	DomainID   string           `gorm:"not null;size:36;uniqueIndex:idx_alias_address,priority:2;index" json:"domain_id"`
	Domain     *Domain          `gorm:"foreignKey:DomainID" json:"domain,omitempty"`
	Enabled    bool             `gorm:"default:true" json:"enabled"`
	Recipients []AliasRecipient `gorm:"foreignKey:AliasID;constraint:OnDelete:CASCADE" json:"recipients"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Alias.
func (Alias) TableName() string {
	return "aliases"
}

// ObjectRef returns the grant target reference of the alias.
func (a *Alias) ObjectRef() ObjectRef {
	return ObjectRef{Type: ObjectTypeAlias, ID: a.ID}
}

// ObjectName returns the full address when the domain is loaded.
func (a *Alias) ObjectName() string {
	return a.FullAddress()
}

// FullAddress returns "local@domain", or the local part alone when the
// domain is not loaded.
func (a *Alias) FullAddress() string {
	if a.Domain == nil {
		return a.Address
	}
	return a.Address + "@" + a.Domain.Name
}

// Kind derives the alias kind from its recipients.
func (a *Alias) Kind() AliasKind {
	if len(a.Recipients) >= 2 {
		return AliasKindDistributionList
	}
	for _, r := range a.Recipients {
		if r.IsExternal() {
			return AliasKindForward
		}
	}
	return AliasKindAlias
}

// RecipientAddresses returns the recipient addresses in order.
func (a *Alias) RecipientAddresses() []string {
	out := make([]string, len(a.Recipients))
	for i, r := range a.Recipients {
		out[i] = r.Address
	}
	return out
}

// Validate checks if the alias has a valid configuration.
func (a *Alias) Validate() error {
	if err := validateLocalPart(a.Address); err != nil {
		return err
	}
	if a.DomainID == "" {
		return fmt.Errorf("domain is required")
	}
	if len(a.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, r := range a.Recipients {
		if err := ValidateAddress(r.Address); err != nil {
			return err
		}
	}
	return nil
}

// AliasRecipient is one destination of an Alias.
// MailboxID is set when the recipient is a hosted mailbox.
type AliasRecipient struct {
	ID        string  `gorm:"primaryKey;size:36" json:"-"`
	AliasID   string  `gorm:"not null;size:36;index" json:"-"`
	Address   string  `gorm:"not null;size:254" json:"address"`
	MailboxID *string `gorm:"size:36;index" json:"mailbox_id,omitempty"`
	Position  int     `gorm:"default:0" json:"-"`
}

// TableName returns the table name for AliasRecipient.
func (AliasRecipient) TableName() string {
	return "alias_recipients"
}

// IsExternal reports whether the recipient is outside the hosted mailboxes.
func (r AliasRecipient) IsExternal() bool {
	return r.MailboxID == nil
}

// SplitAddress splits "local@domain" into its normalized parts.
func SplitAddress(address string) (local, domain string, err error) {
	address = NormalizeName(address)
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", "", fmt.Errorf("invalid address %q", address)
	}
	return address[:at], address[at+1:], nil
}

// ValidateAddress checks that address is a plausible "local@domain".
func ValidateAddress(address string) error {
	local, domain, err := SplitAddress(address)
	if err != nil {
		return err
	}
	if err := validateLocalPart(local); err != nil {
		return err
	}
	return validateDomainName(domain)
}

func validateLocalPart(local string) error {
	if local == "" {
		return fmt.Errorf("address is required")
	}
	if strings.ContainsAny(local, "@ \t\r\n") {
		return fmt.Errorf("invalid local part %q", local)
	}
	return nil
}
