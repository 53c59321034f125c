// Package mailboxes manages mailboxes and the aliases redirecting to them.
//
// Alias recipients that match a hosted mailbox are linked to it; the rest
// are external forwards. The alias kind reported to clients is derived from
// the recipients.
package mailboxes
