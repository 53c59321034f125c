package mailboxes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/testenv"
	"github.com/marmos91/postmaster/pkg/events"
)

type fixture struct {
	svc    *Service
	env    *testenv.Env
	root   *models.Account
	dadmin *models.Account
	user   *models.Account
	domain *models.Domain
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testenv.New(t)
	root := env.Account(t, "root", models.RoleSuperAdmin, nil)
	dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, root)
	user := env.Account(t, "user@example.com", models.RoleSimpleUser, dadmin)
	domain := env.Domain(t, "example.com", dadmin)
	return &fixture{
		svc:    New(env.Store, env.Guard, env.Bus),
		env:    env,
		root:   root,
		dadmin: dadmin,
		user:   user,
		domain: domain,
	}
}

func TestCreateMailbox(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rec := f.env.Record(events.MailboxCreated)

	mb, err := f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "User@Example.com", Account: "user@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", mb.FullAddress())
	require.Len(t, rec.Events, 1)
	assert.Equal(t, "user@example.com", rec.Events[0].Object.ObjectName())

	ok, err := f.env.Store.IsOwner(ctx, f.dadmin.ID, mb.ObjectRef())
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "user@example.com", Account: "user@example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicateMailbox)

	_, err = f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "x@unknown.org", Account: "user@example.com"})
	assert.True(t, models.IsAdminError(err))

	_, err = f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "bad-address", Account: "user@example.com"})
	assert.True(t, models.IsAdminError(err))
}

func TestCreateMailbox_Access(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	other := f.env.Domain(t, "other.org", f.root)
	stranger := f.env.Account(t, "stranger@other.org", models.RoleSimpleUser, f.root)

	_, err := f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "x@" + other.Name, Account: "user@example.com"})
	assert.ErrorIs(t, err, models.ErrPermissionDenied, "domain not accessible")

	_, err = f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "x@example.com", Account: stranger.Username})
	assert.ErrorIs(t, err, models.ErrPermissionDenied, "account not accessible")

	_, err = f.svc.Create(ctx, f.user, CreateRequest{Address: "y@example.com", Account: "user@example.com"})
	assert.ErrorIs(t, err, models.ErrPermissionDenied, "simple users cannot add mailboxes")
}

func TestCreateMailbox_Quota(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.domain.Quota = 100
	require.NoError(t, f.env.Store.UpdateDomain(ctx, f.domain))

	_, err := f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "big@example.com", Account: "user@example.com", Quota: 500})
	assert.True(t, models.IsAdminError(err))

	_, err = f.svc.Create(ctx, f.dadmin, CreateRequest{Address: "ok@example.com", Account: "user@example.com", Quota: 50})
	assert.NoError(t, err)
}

func TestUpdateMailbox(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.env.Mailbox(t, "user", f.domain, f.user, f.dadmin)
	rec := f.env.Record(events.MailboxModified)

	addr := "renamed@example.com"
	mb, err := f.svc.Update(ctx, f.dadmin, "user@example.com", UpdateRequest{Address: &addr})
	require.NoError(t, err)
	assert.Equal(t, "renamed@example.com", mb.FullAddress())
	require.Len(t, rec.Events, 1)
	assert.Equal(t, "user@example.com", rec.Events[0].OldName)

	_, err = f.svc.Get(ctx, f.dadmin, "renamed@example.com")
	require.NoError(t, err)
}

func TestDeleteMailbox(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mb := f.env.Mailbox(t, "user", f.domain, f.user, f.dadmin)
	alias, err := f.svc.CreateAlias(ctx, f.dadmin, AliasRequest{Address: "info@example.com", Recipients: []string{"user@example.com", "ext@gmail.com"}})
	require.NoError(t, err)
	rec := f.env.Record(events.MailboxDeleted)

	require.NoError(t, f.svc.Delete(ctx, f.dadmin, "user@example.com"))
	assert.Len(t, rec.Events, 1)

	grants, err := f.env.Store.ListGrantsFor(ctx, mb.ObjectRef())
	require.NoError(t, err)
	assert.Empty(t, grants)

	got, err := f.env.Store.GetAliasByID(ctx, alias.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ext@gmail.com"}, got.RecipientAddresses())
}

func TestListMailboxes(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.env.Mailbox(t, "user", f.domain, f.user, f.dadmin)
	other := f.env.Domain(t, "other.org", f.root)
	f.env.Mailbox(t, "root", other, f.root, f.root)

	all, err := f.svc.List(ctx, f.root, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.List(ctx, f.dadmin, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "user@example.com", mine[0].FullAddress())

	byDomain, err := f.svc.List(ctx, f.root, "other.org")
	require.NoError(t, err)
	assert.Len(t, byDomain, 1)

	_, err = f.svc.List(ctx, f.root, "missing.org")
	assert.ErrorIs(t, err, models.ErrDomainNotFound)
}

func TestAliases(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.env.Mailbox(t, "user", f.domain, f.user, f.dadmin)
	rec := f.env.Record(events.AliasCreated, events.AliasModified, events.AliasDeleted)

	t.Run("kinds", func(t *testing.T) {
		a, err := f.svc.CreateAlias(ctx, f.dadmin, AliasRequest{Address: "plain@example.com", Recipients: []string{"user@example.com"}})
		require.NoError(t, err)
		assert.Equal(t, models.AliasKindAlias, a.Kind())
		require.NotNil(t, a.Recipients[0].MailboxID)

		fw, err := f.svc.CreateAlias(ctx, f.dadmin, AliasRequest{Address: "fw@example.com", Recipients: []string{"someone@gmail.com"}})
		require.NoError(t, err)
		assert.Equal(t, models.AliasKindForward, fw.Kind())

		dl, err := f.svc.CreateAlias(ctx, f.dadmin, AliasRequest{Address: "team@example.com", Recipients: []string{"user@example.com", "someone@gmail.com", "USER@example.com"}})
		require.NoError(t, err)
		assert.Equal(t, models.AliasKindDistributionList, dl.Kind())
		assert.Equal(t, []string{"user@example.com", "someone@gmail.com"}, dl.RecipientAddresses())
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := f.svc.CreateAlias(ctx, f.dadmin, AliasRequest{Address: "plain@example.com", Recipients: []string{"user@example.com"}})
		require.ErrorIs(t, err, models.ErrDuplicateAlias)
		assert.Equal(t, "Alias with this name already exists", err.Error())
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.svc.CreateAlias(ctx, f.dadmin, AliasRequest{Address: "empty@example.com"})
		assert.True(t, models.IsAdminError(err))

		_, err = f.svc.CreateAlias(ctx, f.dadmin, AliasRequest{Address: "bad@example.com", Recipients: []string{"nope"}})
		assert.True(t, models.IsAdminError(err))
	})

	t.Run("update and delete", func(t *testing.T) {
		a, err := f.svc.UpdateAlias(ctx, f.dadmin, "fw@example.com", AliasUpdateRequest{Recipients: []string{"a@gmail.com", "b@gmail.com"}})
		require.NoError(t, err)
		assert.Equal(t, models.AliasKindDistributionList, a.Kind())

		stored, err := f.svc.GetAlias(ctx, f.dadmin, "fw@example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"a@gmail.com", "b@gmail.com"}, stored.RecipientAddresses())

		require.NoError(t, f.svc.DeleteAlias(ctx, f.dadmin, "fw@example.com"))
		_, err = f.svc.GetAlias(ctx, f.dadmin, "fw@example.com")
		assert.ErrorIs(t, err, models.ErrAliasNotFound)
	})

	t.Run("access", func(t *testing.T) {
		_, err := f.svc.GetAlias(ctx, f.user, "plain@example.com")
		assert.ErrorIs(t, err, models.ErrPermissionDenied)

		list, err := f.svc.ListAliases(ctx, f.root, "example.com")
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	assert.Equal(t, []events.Name{
		events.AliasCreated, events.AliasCreated, events.AliasCreated,
		events.AliasModified, events.AliasDeleted,
	}, rec.Names())
}

func TestGetUsedMailbox(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.env.Mailbox(t, "user", f.domain, f.user, f.dadmin)
	stranger := f.env.Account(t, "stranger@example.com", models.RoleSimpleUser, f.root)

	mb, err := f.svc.GetUsed(ctx, f.user, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, mb.AccountID)

	_, err = f.svc.GetUsed(ctx, f.dadmin, "user@example.com")
	assert.NoError(t, err)

	_, err = f.svc.GetUsed(ctx, stranger, "user@example.com")
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	_, err = f.svc.GetUsed(ctx, f.user, "missing@example.com")
	assert.ErrorIs(t, err, models.ErrMailboxNotFound)
}
