package access

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// Resource names a class of objects in the role policy.
type Resource string

const (
	ResourceAccount     Resource = "account"
	ResourceDomain      Resource = "domain"
	ResourceDomainAlias Resource = "domainalias"
	ResourceMailbox     Resource = "mailbox"
	ResourceAlias       Resource = "alias"
	ResourceExtension   Resource = "extension"
	ResourceSetting     Resource = "setting"
	ResourceGrant       Resource = "grant"
	ResourceAudit       Resource = "audit"
	// ResourceSelf is the caller's own account.
	ResourceSelf Resource = "self"
)

// Action is an operation on a Resource.
type Action string

const (
	ActionView           Action = "view"
	ActionAdd            Action = "add"
	ActionChange         Action = "change"
	ActionDelete         Action = "delete"
	ActionChangePassword Action = "change_password"
)

// ResourceFor maps an object type to its policy resource.
func ResourceFor(t models.ObjectType) Resource {
	return Resource(t)
}

//go:embed rbac_model.conf
var defaultModel string

//go:embed rbac_policy.csv
var defaultPolicy string

// Policy answers role-level permission questions ("may a DomainAdmins
// account add mailboxes?"). Object-level checks are done by Resolver.
type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

// NewPolicy builds the policy shipped with the binary.
func NewPolicy() (*Policy, error) {
	return NewPolicyFromText(defaultModel, defaultPolicy)
}

// NewPolicyFromText builds a policy from a casbin model and CSV policy lines.
func NewPolicyFromText(modelText, policyText string) (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rbac model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(compactPolicy(policyText)))
	if err != nil {
		return nil, fmt.Errorf("failed to load rbac policy: %w", err)
	}
	return &Policy{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform act on res.
func (p *Policy) Allowed(role models.Role, res Resource, act Action) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enforcer.Enforce(string(role), string(res), string(act))
}

// Check returns models.ErrPermissionDenied unless the account's role may
// perform act on res. Superusers are always allowed.
func (p *Policy) Check(account *models.Account, res Resource, act Action) error {
	if account == nil {
		return models.ErrPermissionDenied
	}
	if account.IsSuperuser {
		return nil
	}
	ok, err := p.Allowed(account.Role, res, act)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !ok {
		return models.ErrPermissionDenied
	}
	return nil
}

// Permissions lists the (resource, action) pairs granted to role,
// including inherited ones.
func (p *Policy) Permissions(role models.Role) ([][]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enforcer.GetImplicitPermissionsForUser(string(role))
}

// compactPolicy drops blank and comment lines.
func compactPolicy(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
