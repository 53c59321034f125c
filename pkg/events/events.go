// Package events is an in-process publish/subscribe bus for administration
// lifecycle notifications.
//
// Handlers run synchronously in the publisher's goroutine, in subscription
// order. Every handler runs even when an earlier one fails; their errors are
// joined and returned to the publisher.
package events

import (
	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// Name identifies an event.
type Name string

const (
	AccountCreated     Name = "AccountCreated"
	AccountAutoCreated Name = "AccountAutoCreated"
	AccountModified    Name = "AccountModified"
	AccountDeleted     Name = "AccountDeleted"
	RoleChanged        Name = "RoleChanged"
	PasswordUpdated    Name = "PasswordUpdated"

	DomainCreated  Name = "DomainCreated"
	DomainModified Name = "DomainModified"
	DomainDeleted  Name = "DomainDeleted"

	DomainAliasCreated  Name = "DomainAliasCreated"
	DomainAliasModified Name = "DomainAliasModified"
	DomainAliasDeleted  Name = "DomainAliasDeleted"

	MailboxCreated  Name = "MailboxCreated"
	MailboxModified Name = "MailboxModified"
	MailboxDeleted  Name = "MailboxDeleted"

	AliasCreated  Name = "AliasCreated"
	AliasModified Name = "AliasModified"
	AliasDeleted  Name = "AliasDeleted"

	ExtEnabled  Name = "ExtEnabled"
	ExtDisabled Name = "ExtDisabled"
)

// Event carries the context of a lifecycle change.
type Event struct {
	Name Name

	// Actor is the account that triggered the change, nil for system actions.
	Actor *models.Account

	// Object is the entity the event is about. Nil for extension events.
	Object models.Object

	// OldName is the previous name of a renamed domain or the previous
	// full address of a modified mailbox.
	OldName string

	// Role is the new role of a RoleChanged event.
	Role models.Role

	// Extension is the extension name of ExtEnabled and ExtDisabled.
	Extension string
}

// ActorName returns the actor's username, or "system" without an actor.
func (e Event) ActorName() string {
	if e.Actor == nil {
		return "system"
	}
	return e.Actor.Username
}
