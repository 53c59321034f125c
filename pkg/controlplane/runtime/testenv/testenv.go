// Package testenv wires an in-memory store, access guard and event bus for
// runtime service tests.
package testenv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
)

// Settings is a fixed accounts.Settings implementation.
type Settings struct {
	Scheme password.Scheme
	Local  bool
}

func (s *Settings) PasswordScheme() password.Scheme { return s.Scheme }
func (s *Settings) LocalAuthentication() bool       { return s.Local }

// Env bundles the collaborators of the runtime services.
type Env struct {
	Store    *store.GORMStore
	Guard    *access.Guard
	Bus      *events.Bus
	Settings *Settings
}

// New creates an Env backed by a fresh in-memory database.
func New(t *testing.T) *Env {
	t.Helper()

	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	policy, err := access.NewPolicy()
	require.NoError(t, err)

	return &Env{
		Store:    s,
		Guard:    access.NewGuard(policy, access.NewResolver(s)),
		Bus:      events.NewBus(),
		Settings: &Settings{Scheme: password.SchemePlain, Local: true},
	}
}

// Account inserts an account created by creator (nil for none). The
// password is stored as {PLAIN}secret.
func (e *Env) Account(t *testing.T, username string, role models.Role, creator *models.Account) *models.Account {
	t.Helper()
	a := &models.Account{
		Username:     username,
		PasswordHash: "{PLAIN}secret",
		Enabled:      true,
		IsLocal:      true,
		Role:         role,
		IsSuperuser:  role == models.RoleSuperAdmin,
	}
	_, err := e.Store.CreateAccount(context.Background(), a, idOf(creator))
	require.NoError(t, err)
	if role == models.RoleDomainAdmin {
		require.NoError(t, e.Store.GrantAccess(context.Background(), a.ID, a.ObjectRef(), false))
	}
	return a
}

// Domain inserts a domain owned by creator.
func (e *Env) Domain(t *testing.T, name string, creator *models.Account) *models.Domain {
	t.Helper()
	d := &models.Domain{Name: name, Enabled: true}
	_, err := e.Store.CreateDomain(context.Background(), d, idOf(creator))
	require.NoError(t, err)
	return d
}

// Mailbox inserts a mailbox used by owner and created by creator.
func (e *Env) Mailbox(t *testing.T, local string, d *models.Domain, owner, creator *models.Account) *models.Mailbox {
	t.Helper()
	m := &models.Mailbox{Address: local, DomainID: d.ID, AccountID: owner.ID}
	_, err := e.Store.CreateMailbox(context.Background(), m, idOf(creator))
	require.NoError(t, err)
	m.Domain = d
	return m
}

// Recorder collects published events.
type Recorder struct {
	Events []events.Event
}

// Record subscribes the recorder to names.
func (e *Env) Record(names ...events.Name) *Recorder {
	r := &Recorder{}
	for _, n := range names {
		e.Bus.Subscribe(n, func(_ context.Context, ev events.Event) error {
			r.Events = append(r.Events, ev)
			return nil
		})
	}
	return r
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []events.Name {
	out := make([]events.Name, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Name
	}
	return out
}

func idOf(a *models.Account) string {
	if a == nil {
		return ""
	}
	return a.ID
}
