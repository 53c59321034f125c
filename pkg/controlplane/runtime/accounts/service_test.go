package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/runtime/testenv"
	"github.com/marmos91/postmaster/pkg/events"
)

func newService(t *testing.T) (*Service, *testenv.Env, *models.Account) {
	t.Helper()
	env := testenv.New(t)
	root := env.Account(t, "root", models.RoleSuperAdmin, nil)
	return New(env.Store, env.Guard, env.Bus, env.Settings), env, root
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("encodes password and grants ownership", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Settings.Scheme = password.SchemeSHA512Crypt
		rec := env.Record(events.AccountCreated, events.RoleChanged)

		acc, err := svc.Create(ctx, root, CreateRequest{Username: "Alice@Example.com", Password: "pw", Role: models.RoleDomainAdmin})
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", acc.Username)
		assert.True(t, strings.HasPrefix(acc.PasswordHash, "{SHA512-CRYPT}"))
		assert.True(t, svc.CheckPassword(acc, "pw"))
		assert.False(t, svc.CheckPassword(acc, "other"))
		assert.Equal(t, models.RoleDomainAdmin, acc.Role)

		owner, err := env.Store.GetObjectOwner(ctx, acc.ObjectRef())
		require.NoError(t, err)
		assert.Equal(t, root.ID, owner.ID)

		self, err := env.Store.HasGrant(ctx, acc.ID, acc.ObjectRef())
		require.NoError(t, err)
		assert.True(t, self, "domain admins can access themselves")

		assert.Equal(t, []events.Name{events.RoleChanged, events.AccountCreated}, rec.Names())
	})

	t.Run("simple user gets no self grant", func(t *testing.T) {
		svc, env, root := newService(t)
		acc, err := svc.Create(ctx, root, CreateRequest{Username: "bob@example.com", Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, models.RoleSimpleUser, acc.Role)

		self, err := env.Store.HasGrant(ctx, acc.ID, acc.ObjectRef())
		require.NoError(t, err)
		assert.False(t, self)
	})

	t.Run("domain admin cannot create superadmins", func(t *testing.T) {
		svc, env, root := newService(t)
		dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, root)

		_, err := svc.Create(ctx, dadmin, CreateRequest{Username: "evil", Password: "pw", Role: models.RoleSuperAdmin})
		assert.True(t, models.IsAdminError(err))

		acc, err := svc.Create(ctx, dadmin, CreateRequest{Username: "helper", Password: "pw", Role: models.RoleDomainAdmin})
		require.NoError(t, err)
		ok, err := env.Store.IsOwner(ctx, dadmin.ID, acc.ObjectRef())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("simple users cannot create accounts", func(t *testing.T) {
		svc, env, root := newService(t)
		user := env.Account(t, "user@example.com", models.RoleSimpleUser, root)
		_, err := svc.Create(ctx, user, CreateRequest{Username: "x", Password: "pw"})
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
	})

	t.Run("empty password", func(t *testing.T) {
		svc, _, root := newService(t)
		_, err := svc.Create(ctx, root, CreateRequest{Username: "nopw"})
		assert.True(t, models.IsAdminError(err))
	})

	t.Run("duplicate", func(t *testing.T) {
		svc, _, root := newService(t)
		_, err := svc.Create(ctx, root, CreateRequest{Username: "dup", Password: "pw"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, root, CreateRequest{Username: "DUP", Password: "pw"})
		assert.ErrorIs(t, err, models.ErrDuplicateAccount)
	})
}

func TestSetRole(t *testing.T) {
	ctx := context.Background()

	t.Run("leaving superadmins drops held grants", func(t *testing.T) {
		svc, env, root := newService(t)
		other := env.Account(t, "other", models.RoleSuperAdmin, root)
		d := env.Domain(t, "example.com", other)

		acc, err := svc.SetRole(ctx, root, "other", models.RoleDomainAdmin)
		require.NoError(t, err)
		assert.False(t, acc.IsSuperuser)
		assert.Equal(t, models.RoleDomainAdmin, acc.Role)

		held, err := env.Store.ListGrantsHeldBy(ctx, other.ID)
		require.NoError(t, err)
		require.Len(t, held, 1, "only the self grant remains")
		assert.Equal(t, other.ObjectRef(), held[0].Target())

		ok, err := env.Store.HasGrant(ctx, other.ID, d.ObjectRef())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("becoming superadmin sets the flag", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		rec := env.Record(events.RoleChanged)

		acc, err := svc.SetRole(ctx, root, "u@example.com", models.RoleSuperAdmin)
		require.NoError(t, err)
		assert.True(t, acc.IsSuperuser)
		require.Len(t, rec.Events, 1)
		assert.Equal(t, models.RoleSuperAdmin, rec.Events[0].Role)
	})

	t.Run("unchanged role is a no-op", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		rec := env.Record(events.RoleChanged)

		_, err := svc.SetRole(ctx, root, "u@example.com", models.RoleSimpleUser)
		require.NoError(t, err)
		_, err = svc.SetRole(ctx, root, "u@example.com", "")
		require.NoError(t, err)
		assert.Empty(t, rec.Events)
	})

	t.Run("unknown role falls back to simple users", func(t *testing.T) {
		svc, env, root := newService(t)
		acc := env.Account(t, "d", models.RoleDomainAdmin, root)
		require.NoError(t, svc.setRole(ctx, root, acc, "Wizards"))
		assert.Equal(t, models.RoleSimpleUser, acc.Role)
	})

	t.Run("own role cannot be changed", func(t *testing.T) {
		svc, _, root := newService(t)
		_, err := svc.SetRole(ctx, root, "root", models.RoleSimpleUser)
		assert.True(t, models.IsAdminError(err))
	})
}

func TestSetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("admin resets password", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		rec := env.Record(events.PasswordUpdated)

		require.NoError(t, svc.SetPassword(ctx, root, "u@example.com", "fresh"))
		acc, err := env.Store.GetAccount(ctx, "u@example.com")
		require.NoError(t, err)
		assert.Equal(t, "{PLAIN}fresh", acc.PasswordHash)
		assert.Len(t, rec.Events, 1)
	})

	t.Run("external authentication refuses", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		env.Settings.Local = false
		err := svc.SetPassword(ctx, root, "u@example.com", "fresh")
		assert.ErrorIs(t, err, models.ErrExternalPassword)
	})

	t.Run("simple user changes own password", func(t *testing.T) {
		svc, env, root := newService(t)
		user := env.Account(t, "u@example.com", models.RoleSimpleUser, root)

		assert.ErrorIs(t, svc.ChangeOwnPassword(ctx, user, "wrong", "next"), models.ErrInvalidCredentials)
		require.NoError(t, svc.ChangeOwnPassword(ctx, user, "secret", "next"))

		acc, err := svc.Authenticate(ctx, "u@example.com", "next")
		require.NoError(t, err)
		assert.Equal(t, user.ID, acc.ID)
	})

	t.Run("no access to unrelated account", func(t *testing.T) {
		svc, env, root := newService(t)
		dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, root)
		env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		err := svc.SetPassword(ctx, dadmin, "u@example.com", "x")
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("upgrades the stored scheme", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		env.Settings.Scheme = password.SchemeSHA256

		acc, err := svc.Authenticate(ctx, "u@example.com", "secret")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(acc.PasswordHash, "{SHA256}"))

		stored, err := env.Store.GetAccount(ctx, "u@example.com")
		require.NoError(t, err)
		assert.Equal(t, acc.PasswordHash, stored.PasswordHash)
		assert.NotNil(t, stored.LastLogin)
	})

	t.Run("bad password", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		_, err := svc.Authenticate(ctx, "u@example.com", "nope")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("unknown account without backend", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.Authenticate(ctx, "ghost", "x")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("disabled account", func(t *testing.T) {
		svc, env, root := newService(t)
		acc := env.Account(t, "u@example.com", models.RoleSimpleUser, root)
		acc.Enabled = false
		require.NoError(t, env.Store.UpdateAccount(ctx, acc))
		_, err := svc.Authenticate(ctx, "u@example.com", "secret")
		assert.ErrorIs(t, err, models.ErrAccountDisabled)
	})

	t.Run("external backend provisions accounts", func(t *testing.T) {
		svc, env, root := newService(t)
		second := env.Account(t, "second", models.RoleSuperAdmin, root)
		svc.SetExternalAuthenticator(fakeBackend{"ext@example.com": "ldap"})
		rec := env.Record(events.AccountAutoCreated)

		acc, err := svc.Authenticate(ctx, "ext@example.com", "ldap")
		require.NoError(t, err)
		assert.False(t, acc.IsLocal)
		assert.Equal(t, "ext@example.com", acc.Email)
		assert.Len(t, rec.Events, 1)

		owner, err := env.Store.GetObjectOwner(ctx, acc.ObjectRef())
		require.NoError(t, err)
		assert.Equal(t, root.ID, owner.ID)

		ok, err := env.Store.HasGrant(ctx, second.ID, acc.ObjectRef())
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = svc.Authenticate(ctx, "ext@example.com", "wrong")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)

		again, err := svc.Authenticate(ctx, "ext@example.com", "ldap")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, again.ID)
	})

	t.Run("backend failure", func(t *testing.T) {
		svc, _, _ := newService(t)
		svc.SetExternalAuthenticator(failingBackend{})
		_, err := svc.Authenticate(ctx, "x", "y")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("self deletion", func(t *testing.T) {
		svc, _, root := newService(t)
		assert.ErrorIs(t, svc.Delete(ctx, root, "root"), models.ErrSelfDeletion)
	})

	t.Run("owned objects go to the account owner", func(t *testing.T) {
		svc, env, root := newService(t)
		reseller := env.Account(t, "reseller", models.RoleDomainAdmin, root)
		dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, reseller)
		d := env.Domain(t, "example.com", dadmin)
		mb := env.Mailbox(t, "dadmin", d, dadmin, dadmin)
		rec := env.Record(events.AccountDeleted, events.MailboxDeleted)

		require.NoError(t, svc.Delete(ctx, root, "dadmin"))

		owner, err := env.Store.GetObjectOwner(ctx, d.ObjectRef())
		require.NoError(t, err)
		assert.Equal(t, reseller.ID, owner.ID)

		_, err = env.Store.GetMailboxByID(ctx, mb.ID)
		assert.ErrorIs(t, err, models.ErrMailboxNotFound)
		assert.Equal(t, []events.Name{events.AccountDeleted, events.MailboxDeleted}, rec.Names())

		held, err := env.Store.ListGrantsHeldBy(ctx, dadmin.ID)
		require.NoError(t, err)
		assert.Empty(t, held)
	})

	t.Run("event follows the store deletion", func(t *testing.T) {
		svc, env, root := newService(t)
		env.Account(t, "gone@example.com", models.RoleSimpleUser, root)

		var lookupErr error
		env.Bus.Subscribe(events.AccountDeleted, func(ctx context.Context, ev events.Event) error {
			_, lookupErr = env.Store.GetAccount(ctx, ev.Object.ObjectName())
			return nil
		})

		require.NoError(t, svc.Delete(ctx, root, "gone@example.com"))
		assert.ErrorIs(t, lookupErr, models.ErrAccountNotFound)
	})

	t.Run("orphans go to the actor", func(t *testing.T) {
		svc, env, root := newService(t)
		orphan := env.Account(t, "orphan", models.RoleDomainAdmin, nil)
		d := env.Domain(t, "orphan.org", orphan)

		require.NoError(t, svc.Delete(ctx, root, "orphan"))
		ok, err := env.Store.IsOwner(ctx, root.ID, d.ObjectRef())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("requires access", func(t *testing.T) {
		svc, env, root := newService(t)
		dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, root)
		env.Account(t, "other@example.com", models.RoleSimpleUser, root)
		assert.ErrorIs(t, svc.Delete(ctx, dadmin, "other@example.com"), models.ErrPermissionDenied)
	})
}

func TestListAndGet(t *testing.T) {
	ctx := context.Background()
	svc, env, root := newService(t)
	dadmin := env.Account(t, "dadmin", models.RoleDomainAdmin, root)
	env.Account(t, "mine@example.com", models.RoleSimpleUser, dadmin)
	env.Account(t, "theirs@example.com", models.RoleSimpleUser, root)
	user := env.Account(t, "user@example.com", models.RoleSimpleUser, root)

	all, err := svc.List(ctx, root)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	visible, err := svc.List(ctx, dadmin)
	require.NoError(t, err)
	var names []string
	for _, a := range visible {
		names = append(names, a.Username)
	}
	assert.ElementsMatch(t, []string{"dadmin", "mine@example.com"}, names)

	_, err = svc.List(ctx, user)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	me, err := svc.Get(ctx, user, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	_, err = svc.Get(ctx, user, "theirs@example.com")
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, env, root := newService(t)
	env.Account(t, "u@example.com", models.RoleSimpleUser, root)
	rec := env.Record(events.AccountModified)

	first := "Ursula"
	disabled := false
	acc, err := svc.Update(ctx, root, "u@example.com", UpdateRequest{FirstName: &first, Enabled: &disabled})
	require.NoError(t, err)
	assert.Equal(t, "Ursula", acc.FullName())
	assert.False(t, acc.Enabled)
	assert.Len(t, rec.Events, 1)

	_, err = svc.Update(ctx, root, "root", UpdateRequest{Enabled: &disabled})
	assert.True(t, models.IsAdminError(err))

	bad := "other@example.com"
	_, err = svc.Update(ctx, root, "u@example.com", UpdateRequest{Email: &bad})
	assert.True(t, models.IsAdminError(err))
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("generates a password once", func(t *testing.T) {
		env := testenv.New(t)
		svc := New(env.Store, env.Guard, env.Bus, env.Settings)
		t.Setenv(EnvAdminInitialPassword, "")

		pw, err := svc.EnsureAdmin(ctx)
		require.NoError(t, err)
		assert.Len(t, pw, 24)

		admin, err := env.Store.GetAccount(ctx, DefaultAdminUsername)
		require.NoError(t, err)
		assert.True(t, admin.IsSuperuser)
		assert.True(t, admin.MustChangePassword)
		assert.True(t, svc.CheckPassword(admin, pw))

		pw, err = svc.EnsureAdmin(ctx)
		require.NoError(t, err)
		assert.Empty(t, pw)
	})

	t.Run("uses the environment", func(t *testing.T) {
		env := testenv.New(t)
		svc := New(env.Store, env.Guard, env.Bus, env.Settings)
		t.Setenv(EnvAdminInitialPassword, "from-env")

		pw, err := svc.EnsureAdmin(ctx)
		require.NoError(t, err)
		assert.Empty(t, pw)

		admin, err := svc.Authenticate(ctx, DefaultAdminUsername, "from-env")
		require.NoError(t, err)
		assert.False(t, admin.MustChangePassword)
	})

	t.Run("custom username", func(t *testing.T) {
		env := testenv.New(t)
		svc := New(env.Store, env.Guard, env.Bus, env.Settings)
		svc.SetAdminUsername("postmaster")
		t.Setenv(EnvAdminInitialPassword, "from-env")

		_, err := svc.EnsureAdmin(ctx)
		require.NoError(t, err)

		_, err = env.Store.GetAccount(ctx, "postmaster")
		require.NoError(t, err)
		_, err = env.Store.GetAccount(ctx, DefaultAdminUsername)
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})
}

type fakeBackend map[string]string

func (f fakeBackend) Authenticate(_ context.Context, username, pw string) (bool, error) {
	want, ok := f[username]
	return ok && want == pw, nil
}

type failingBackend struct{}

func (failingBackend) Authenticate(context.Context, string, string) (bool, error) {
	return false, errors.New("backend unreachable")
}
