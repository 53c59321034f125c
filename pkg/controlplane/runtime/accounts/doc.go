// Package accounts provides account management.
//
// The Service creates, modifies and deletes accounts on behalf of an actor,
// enforcing the role policy and object grants, keeps passwords encoded with
// the configured scheme and publishes the account lifecycle events.
package accounts
