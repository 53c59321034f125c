package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/accounts"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/domains"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/mailboxes"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/testenv"
)

type countingRefresher struct{ n int }

func (c *countingRefresher) Refresh(context.Context) error {
	c.n++
	return nil
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t)
	root := env.Account(t, "root", models.RoleSuperAdmin, nil)
	dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, root)
	ref := &countingRefresher{}
	svc := New(env.Store, env.Guard, ref)

	require.NoError(t, svc.Set(ctx, root, models.SettingPasswordScheme, "sha256crypt"))
	assert.Equal(t, 1, ref.n)

	v, err := svc.Get(ctx, root, models.SettingPasswordScheme)
	require.NoError(t, err)
	assert.Equal(t, "sha256crypt", v)

	err = svc.Set(ctx, root, models.SettingPasswordScheme, "rot13")
	assert.True(t, models.IsAdminError(err))
	err = svc.Set(ctx, root, models.SettingAuthenticationType, "ldap")
	assert.True(t, models.IsAdminError(err))
	err = svc.Set(ctx, root, " ", "x")
	assert.True(t, models.IsAdminError(err))
	assert.Equal(t, 1, ref.n)

	err = svc.Set(ctx, dadmin, models.SettingPasswordScheme, "plain")
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
	_, err = svc.List(ctx, dadmin)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	all, err := svc.List(ctx, root)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.Delete(ctx, root, models.SettingPasswordScheme))
	_, err = svc.Get(ctx, root, models.SettingPasswordScheme)
	assert.ErrorIs(t, err, models.ErrSettingNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, root, models.SettingPasswordScheme), models.ErrSettingNotFound)
}

func TestGrants(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t)
	root := env.Account(t, "root", models.RoleSuperAdmin, nil)
	dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, root)
	d := env.Domain(t, "example.com", dadmin)
	svc := New(env.Store, env.Guard, nil)

	grants, err := svc.Grants(ctx, root, d.ObjectRef())
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, dadmin.ID, grants[0].AccountID)
	assert.True(t, grants[0].IsOwner)

	_, err = svc.Grants(ctx, dadmin, d.ObjectRef())
	assert.ErrorIs(t, err, models.ErrPermissionDenied, "grants are superuser only")

	_, err = svc.Grants(ctx, root, models.ObjectRef{Type: "share", ID: "x"})
	assert.True(t, models.IsAdminError(err))
}

func TestGrant_DomainAdminManagesGrantedDomain(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t)
	root := env.Account(t, "root", models.RoleSuperAdmin, nil)

	accountSvc := accounts.New(env.Store, env.Guard, env.Bus, env.Settings)
	domainSvc := domains.New(env.Store, env.Guard, env.Bus)
	mailboxSvc := mailboxes.New(env.Store, env.Guard, env.Bus)
	svc := New(env.Store, env.Guard, nil)

	d, err := domainSvc.Create(ctx, root, domains.CreateRequest{Name: "example.com"})
	require.NoError(t, err)
	da, err := accountSvc.Create(ctx, root, accounts.CreateRequest{Username: "da", Password: "secret", Role: models.RoleDomainAdmin})
	require.NoError(t, err)

	visible, err := domainSvc.List(ctx, da)
	require.NoError(t, err)
	assert.Empty(t, visible)

	err = svc.Grant(ctx, da, "da", d.ObjectRef())
	assert.ErrorIs(t, err, models.ErrPermissionDenied, "only superusers grant access")

	require.NoError(t, svc.Grant(ctx, root, "da", d.ObjectRef()))
	require.NoError(t, svc.Grant(ctx, root, "da", d.ObjectRef()), "granting twice is a no-op")

	visible, err = domainSvc.List(ctx, da)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "example.com", visible[0].Name)

	user, err := accountSvc.Create(ctx, da, accounts.CreateRequest{Username: "user@example.com", Password: "secret"})
	require.NoError(t, err)
	_, err = mailboxSvc.Create(ctx, da, mailboxes.CreateRequest{Address: "user@example.com", Account: user.Username})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, root, "da", d.ObjectRef()))
	visible, err = domainSvc.List(ctx, da)
	require.NoError(t, err)
	assert.Empty(t, visible)
	assert.ErrorIs(t, svc.Revoke(ctx, root, "da", d.ObjectRef()), models.ErrGrantNotFound)
}

func TestGrant_Validation(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t)
	root := env.Account(t, "root", models.RoleSuperAdmin, nil)
	user := env.Account(t, "user", models.RoleSimpleUser, root)
	d := env.Domain(t, "example.com", root)
	svc := New(env.Store, env.Guard, nil)

	err := svc.Grant(ctx, root, "user", d.ObjectRef())
	assert.True(t, models.IsAdminError(err), "domains are granted to domain administrators only")

	err = svc.Grant(ctx, root, "user", user.ObjectRef())
	assert.True(t, models.IsAdminError(err))

	err = svc.Grant(ctx, root, "user", models.ObjectRef{Type: models.ObjectTypeDomain, ID: "missing"})
	assert.ErrorIs(t, err, models.ErrDomainNotFound)

	err = svc.Grant(ctx, root, "nobody", user.ObjectRef())
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	err = svc.Revoke(ctx, root, "root", d.ObjectRef())
	assert.True(t, models.IsAdminError(err), "ownership is not revocable")
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t)
	root := env.Account(t, "root", models.RoleSuperAdmin, nil)
	svc := New(env.Store, env.Guard, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.Store.CreateAuditLog(ctx, &models.AuditLog{
			Message: "entry", Level: models.AuditLevelInfo, Logger: "test",
		}))
	}
	entries, err := svc.History(ctx, root, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
