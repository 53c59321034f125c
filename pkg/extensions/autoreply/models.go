package autoreply

import "time"

// Transport routes mail for autoreply.<domain> to the auto-reply service.
type Transport struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Domain string `gorm:"uniqueIndex;not null;size:300" json:"domain"`
	Method string `gorm:"not null;size:255" json:"method"`
}

// TableName returns the table name for Transport.
func (Transport) TableName() string {
	return "postfix_autoreply_transports"
}

// Alias copies mail sent to a mailbox to its auto-reply address.
type Alias struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	FullAddress      string `gorm:"uniqueIndex;not null;size:254" json:"full_address"`
	AutoreplyAddress string `gorm:"not null;size:300" json:"autoreply_address"`
}

// TableName returns the table name for Alias.
func (Alias) TableName() string {
	return "postfix_autoreply_aliases"
}

// Message is the auto-reply of a mailbox. FromDate and UntilDate bound the
// period it is sent in; nil means unbounded.
type Message struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	MailboxID string     `gorm:"uniqueIndex;not null;size:36" json:"mailbox_id"`
	Subject   string     `gorm:"not null;size:255" json:"subject"`
	Content   string     `gorm:"type:text" json:"content"`
	Enabled   bool       `gorm:"default:false" json:"enabled"`
	FromDate  *time.Time `json:"from_date,omitempty"`
	UntilDate *time.Time `json:"until_date,omitempty"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "postfix_autoreply_messages"
}

// Active reports whether the message should be sent at t.
func (m *Message) Active(t time.Time) bool {
	if !m.Enabled {
		return false
	}
	if m.FromDate != nil && t.Before(*m.FromDate) {
		return false
	}
	if m.UntilDate != nil && t.After(*m.UntilDate) {
		return false
	}
	return true
}
