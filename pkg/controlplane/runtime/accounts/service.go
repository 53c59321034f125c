package accounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/pkg/auth/password"
	"github.com/marmos91/postmaster/pkg/controlplane/access"
	"github.com/marmos91/postmaster/pkg/controlplane/models"
	"github.com/marmos91/postmaster/pkg/controlplane/store"
	"github.com/marmos91/postmaster/pkg/events"
)

const (
	// DefaultAdminUsername is the superuser created on first start.
	DefaultAdminUsername = "admin"

	// EnvAdminInitialPassword sets the initial superuser password. When
	// unset a random password is generated and reported once.
	EnvAdminInitialPassword = "POSTMASTER_ADMIN_INITIAL_PASSWORD"
)

// Settings exposes the runtime settings account management depends on.
type Settings interface {
	PasswordScheme() password.Scheme
	LocalAuthentication() bool
}

// ExternalAuthenticator checks credentials against an external backend.
// It returns false without error for rejected credentials.
type ExternalAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
}

// CreateRequest describes a new account.
type CreateRequest struct {
	Username           string
	Password           string
	FirstName          string
	LastName           string
	Email              string
	Role               models.Role
	Enabled            *bool
	MustChangePassword bool
}

// UpdateRequest holds the account fields to change. Nil fields are kept.
type UpdateRequest struct {
	FirstName *string
	LastName  *string
	Email     *string
	Enabled   *bool
	Role      *models.Role
}

// Service implements account management on top of the store.
type Service struct {
	store    store.Store
	guard    *access.Guard
	bus      *events.Bus
	settings Settings
	external ExternalAuthenticator

	adminUsername string
}

// New creates an account service.
func New(s store.Store, guard *access.Guard, bus *events.Bus, settings Settings) *Service {
	return &Service{store: s, guard: guard, bus: bus, settings: settings, adminUsername: DefaultAdminUsername}
}

// SetAdminUsername changes the username EnsureAdmin creates. Empty keeps
// DefaultAdminUsername.
func (s *Service) SetAdminUsername(username string) {
	if username != "" {
		s.adminUsername = username
	}
}

// SetExternalAuthenticator plugs an external authentication backend in.
// Passing nil disables external authentication.
func (s *Service) SetExternalAuthenticator(a ExternalAuthenticator) {
	s.external = a
}

// ============================================
// QUERIES
// ============================================

// Get returns an account the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor *models.Account, username string) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.ID == account.ID {
		if err := s.guard.Policy.Check(actor, access.ResourceSelf, access.ActionView); err != nil {
			return nil, err
		}
		return account, nil
	}
	if err := s.guard.Require(ctx, actor, access.ResourceAccount, access.ActionView, account); err != nil {
		return nil, err
	}
	return account, nil
}

// List returns the accounts the actor can access.
func (s *Service) List(ctx context.Context, actor *models.Account) ([]*models.Account, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceAccount, access.ActionView); err != nil {
		return nil, err
	}
	all, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return access.Filter(ctx, s.guard, actor, all)
}

// ============================================
// CREATION
// ============================================

// Create creates a local account owned by actor.
func (s *Service) Create(ctx context.Context, actor *models.Account, req CreateRequest) (*models.Account, error) {
	if err := s.guard.Policy.Check(actor, access.ResourceAccount, access.ActionAdd); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleSimpleUser
	}
	if err := checkAssignableRole(actor, role); err != nil {
		return nil, err
	}

	account := &models.Account{
		Username:           req.Username,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		Enabled:            true,
		IsLocal:            true,
		Role:               models.RoleSimpleUser,
		MustChangePassword: req.MustChangePassword,
	}
	if req.Enabled != nil {
		account.Enabled = *req.Enabled
	}
	candidate := *account
	candidate.Role = role
	if err := candidate.Validate(); err != nil {
		return nil, models.NewAdminError(err.Error())
	}

	if s.settings.LocalAuthentication() {
		hash, err := password.Encode(req.Password, s.settings.PasswordScheme())
		if err != nil {
			return nil, models.NewAdminError(err.Error())
		}
		account.PasswordHash = hash
	}

	if _, err := s.store.CreateAccount(ctx, account, actorID(actor)); err != nil {
		return nil, err
	}

	if err := s.setRole(ctx, actor, account, role); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Account created", logger.Username(account.Username), logger.KeyRole, string(account.Role))
	s.bus.Emit(ctx, events.Event{Name: events.AccountCreated, Actor: actor, Object: account})
	return account, nil
}

// ProvisionExternal creates the local record of an account authenticated by
// an external backend. The account is owned by the first superuser and every
// other superuser is granted access to it.
func (s *Service) ProvisionExternal(ctx context.Context, username string) (*models.Account, error) {
	supers, err := s.store.ListSuperusers(ctx)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Username: username,
		Enabled:  true,
		IsLocal:  false,
		Role:     models.RoleSimpleUser,
	}
	if strings.Contains(username, "@") {
		account.Email = username
	}

	ownerID := ""
	if len(supers) > 0 {
		ownerID = supers[0].ID
	}
	if _, err := s.store.CreateAccount(ctx, account, ownerID); err != nil {
		return nil, err
	}
	for _, su := range supers[min(1, len(supers)):] {
		if err := s.store.GrantAccess(ctx, su.ID, account.ObjectRef(), false); err != nil {
			return nil, fmt.Errorf("failed to grant %s access: %w", su.Username, err)
		}
	}

	logger.InfoCtx(ctx, "External account provisioned", logger.Username(account.Username))
	s.bus.Emit(ctx, events.Event{Name: events.AccountAutoCreated, Object: account})
	return account, nil
}

// EnsureAdmin creates the initial superuser when none exists. It returns the
// generated password, or "" when nothing was created or the password came
// from EnvAdminInitialPassword.
func (s *Service) EnsureAdmin(ctx context.Context) (string, error) {
	supers, err := s.store.ListSuperusers(ctx)
	if err != nil {
		return "", err
	}
	if len(supers) > 0 {
		return "", nil
	}

	raw := os.Getenv(EnvAdminInitialPassword)
	fromEnv := raw != ""
	if !fromEnv {
		if raw, err = GenerateRandomPassword(); err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
	}

	hash, err := password.Encode(raw, s.settings.PasswordScheme())
	if err != nil {
		return "", err
	}
	admin := &models.Account{
		Username:           s.adminUsername,
		PasswordHash:       hash,
		FirstName:          "Administrator",
		Enabled:            true,
		IsLocal:            true,
		IsSuperuser:        true,
		Role:               models.RoleSuperAdmin,
		MustChangePassword: !fromEnv,
	}
	if _, err := s.store.CreateAccount(ctx, admin, ""); err != nil {
		return "", fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("Initial superuser created", logger.Username(admin.Username))
	if fromEnv {
		return "", nil
	}
	return raw, nil
}

// GenerateRandomPassword returns 24 characters of URL-safe base64.
func GenerateRandomPassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ============================================
// MODIFICATION
// ============================================

// Update changes the descriptive fields, enabled state and role of an account.
func (s *Service) Update(ctx context.Context, actor *models.Account, username string, req UpdateRequest) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceAccount, access.ActionChange, account); err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		account.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		account.LastName = *req.LastName
	}
	if req.Email != nil {
		account.Email = *req.Email
	}
	if req.Enabled != nil {
		if !*req.Enabled && actor != nil && actor.ID == account.ID {
			return nil, models.NewAdminError("you can't disable your own account")
		}
		account.Enabled = *req.Enabled
	}

	candidate := *account
	if req.Role != nil && *req.Role != "" {
		candidate.Role = *req.Role
	}
	if err := candidate.Validate(); err != nil {
		return nil, models.NewAdminError(err.Error())
	}
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	if req.Role != nil {
		if err := s.changeRole(ctx, actor, account, *req.Role); err != nil {
			return nil, err
		}
	}

	s.bus.Emit(ctx, events.Event{Name: events.AccountModified, Actor: actor, Object: account})
	return account, nil
}

// SetRole changes the role of an account.
func (s *Service) SetRole(ctx context.Context, actor *models.Account, username string, role models.Role) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor, access.ResourceAccount, access.ActionChange, account); err != nil {
		return nil, err
	}
	if err := s.changeRole(ctx, actor, account, role); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) changeRole(ctx context.Context, actor, account *models.Account, role models.Role) error {
	if role == "" || role == account.Role {
		return nil
	}
	if actor != nil && actor.ID == account.ID {
		return models.NewAdminError("you can't change your own role")
	}
	if err := checkAssignableRole(actor, role); err != nil {
		return err
	}
	return s.setRole(ctx, actor, account, role)
}

// setRole applies a role change:
//   - becoming SuperAdmins sets the superuser flag
//   - leaving SuperAdmins drops every grant the account holds
//   - unknown roles fall back to SimpleUsers
//   - administrative roles get a grant on the account itself
func (s *Service) setRole(ctx context.Context, actor, account *models.Account, role models.Role) error {
	if role == "" || role == account.Role {
		return nil
	}
	if !role.IsValid() {
		role = models.RoleSimpleUser
		if account.Role == role {
			return nil
		}
	}

	if account.Role == models.RoleSuperAdmin {
		if err := s.store.RevokeAllHeldBy(ctx, account.ID); err != nil {
			return fmt.Errorf("failed to revoke grants: %w", err)
		}
		account.IsSuperuser = false
	}
	if role == models.RoleSuperAdmin {
		account.IsSuperuser = true
	}
	account.Role = role
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return err
	}

	if role != models.RoleSimpleUser {
		ok, err := s.guard.Resolver.CanAccess(ctx, account, account.ObjectRef())
		if err != nil {
			return err
		}
		if !ok {
			if err := s.store.GrantAccess(ctx, account.ID, account.ObjectRef(), false); err != nil {
				return fmt.Errorf("failed to grant self access: %w", err)
			}
		}
	}

	logger.InfoCtx(ctx, "Account role changed", logger.Username(account.Username), logger.KeyRole, string(role))
	s.bus.Emit(ctx, events.Event{Name: events.RoleChanged, Actor: actor, Object: account, Role: role})
	return nil
}

// checkAssignableRole rejects roles the actor may not hand out.
func checkAssignableRole(actor *models.Account, role models.Role) error {
	if actor != nil && actor.IsSuperuser {
		return nil
	}
	if role == models.RoleSimpleUser || role == models.RoleDomainAdmin {
		return nil
	}
	return models.NewAdminError(fmt.Sprintf("you can't assign the role %s", role))
}

// ============================================
// PASSWORDS
// ============================================

// SetPassword replaces the password of username. Administrators need change
// access to the account; accounts changing their own password need the self
// change_password permission.
func (s *Service) SetPassword(ctx context.Context, actor *models.Account, username, raw string) error {
	account, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return err
	}
	if actor != nil && actor.ID == account.ID {
		err = s.guard.Policy.Check(actor, access.ResourceSelf, access.ActionChangePassword)
	} else {
		err = s.guard.Require(ctx, actor, access.ResourceAccount, access.ActionChange, account)
	}
	if err != nil {
		return err
	}
	return s.storePassword(ctx, actor, account, raw)
}

// ChangeOwnPassword verifies the current password before replacing it.
func (s *Service) ChangeOwnPassword(ctx context.Context, actor *models.Account, current, next string) error {
	if err := s.guard.Policy.Check(actor, access.ResourceSelf, access.ActionChangePassword); err != nil {
		return err
	}
	account, err := s.store.GetAccountByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(account, current) {
		return models.ErrInvalidCredentials
	}
	return s.storePassword(ctx, actor, account, next)
}

func (s *Service) storePassword(ctx context.Context, actor, account *models.Account, raw string) error {
	if !s.settings.LocalAuthentication() || !account.IsLocal {
		return models.ErrExternalPassword
	}
	hash, err := password.Encode(raw, s.settings.PasswordScheme())
	if err != nil {
		return models.NewAdminError(err.Error())
	}
	if err := s.store.UpdatePassword(ctx, account.Username, hash); err != nil {
		return err
	}
	account.PasswordHash = hash

	if account.MustChangePassword && actor != nil && actor.ID == account.ID {
		account.MustChangePassword = false
		if err := s.store.UpdateAccount(ctx, account); err != nil {
			return err
		}
	}

	logger.InfoCtx(ctx, "Password updated", logger.Username(account.Username))
	s.bus.Emit(ctx, events.Event{Name: events.PasswordUpdated, Actor: actor, Object: account})
	return nil
}

// CheckPassword verifies raw against the stored digest.
func (s *Service) CheckPassword(account *models.Account, raw string) bool {
	return password.Verify(raw, account.PasswordHash)
}

// Authenticate checks a login. Local accounts are verified against their
// digest and transparently re-encoded when the configured scheme changed.
// Unknown usernames are provisioned when an external backend accepts them.
func (s *Service) Authenticate(ctx context.Context, username, raw string) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, username)
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		account, err = s.authenticateExternal(ctx, username, raw, nil)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case account.IsLocal || s.external == nil:
		if !s.CheckPassword(account, raw) {
			return nil, models.ErrInvalidCredentials
		}
		s.upgradeScheme(ctx, account, raw)
	default:
		if account, err = s.authenticateExternal(ctx, username, raw, account); err != nil {
			return nil, err
		}
	}

	if !account.Enabled {
		return nil, models.ErrAccountDisabled
	}
	if err := s.store.UpdateLastLogin(ctx, account.Username, time.Now()); err != nil {
		logger.WarnCtx(ctx, "Failed to record last login", logger.Username(account.Username), logger.Err(err))
	}
	return account, nil
}

func (s *Service) authenticateExternal(ctx context.Context, username, raw string, known *models.Account) (*models.Account, error) {
	if s.external == nil {
		return nil, models.ErrInvalidCredentials
	}
	ok, err := s.external.Authenticate(ctx, username, raw)
	if err != nil {
		return nil, fmt.Errorf("external authentication failed: %w", err)
	}
	if !ok {
		return nil, models.ErrInvalidCredentials
	}
	if known != nil {
		return known, nil
	}
	return s.ProvisionExternal(ctx, username)
}

// upgradeScheme re-encodes a verified password stored with a scheme other
// than the configured one. Failures only cost the upgrade.
func (s *Service) upgradeScheme(ctx context.Context, account *models.Account, raw string) {
	if !s.settings.LocalAuthentication() {
		return
	}
	want := s.settings.PasswordScheme()
	if current, ok := password.SchemeOf(account.PasswordHash); ok && current == want {
		return
	}
	hash, err := password.Encode(raw, want)
	if err != nil {
		return
	}
	if err := s.store.UpdatePassword(ctx, account.Username, hash); err != nil {
		logger.WarnCtx(ctx, "Failed to upgrade password scheme", logger.Username(account.Username), logger.Err(err))
		return
	}
	account.PasswordHash = hash
	logger.DebugCtx(ctx, "Password scheme upgraded", logger.Username(account.Username), logger.KeyScheme, string(want))
}

// ============================================
// DELETION
// ============================================

// Delete removes an account and the mailboxes it uses. Objects it owns are
// handed over to its own owner, or to actor when it has none.
func (s *Service) Delete(ctx context.Context, actor *models.Account, username string) error {
	account, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return err
	}
	if actor != nil && actor.ID == account.ID {
		return models.ErrSelfDeletion
	}
	if err := s.guard.Require(ctx, actor, access.ResourceAccount, access.ActionDelete, account); err != nil {
		return err
	}

	heir, err := s.guard.Resolver.Owner(ctx, account.ObjectRef())
	if err != nil {
		return err
	}
	if heir == nil || heir.ID == account.ID {
		heir = actor
	}

	mailboxes, err := s.store.DeleteAccount(ctx, account.ID, actorID(heir))
	if err != nil {
		return err
	}

	s.bus.Emit(ctx, events.Event{Name: events.AccountDeleted, Actor: actor, Object: account})
	for _, mb := range mailboxes {
		s.bus.Emit(ctx, events.Event{Name: events.MailboxDeleted, Actor: actor, Object: mb})
	}

	logger.InfoCtx(ctx, "Account deleted", logger.Username(account.Username), "mailboxes", len(mailboxes))
	return nil
}

func actorID(a *models.Account) string {
	if a == nil {
		return ""
	}
	return a.ID
}
