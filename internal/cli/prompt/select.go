package prompt

import (
	"github.com/manifoldco/promptui"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

type roleOption struct {
	Role        models.Role
	Description string
}

var roleOptions = []roleOption{
	{models.RoleSuperAdmin, "Full access to every object"},
	{models.RoleDomainAdmin, "Manages the domains and accounts it was granted"},
	{models.RoleSimpleUser, "Manages its own account and mailbox"},
}

// SelectRole lets the user pick an account role.
func SelectRole(label string) (models.Role, error) {
	p := promptui.Select{
		Label: label,
		Items: roleOptions,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Role | cyan }}",
			Inactive: "  {{ .Role | white }}",
			Selected: "* {{ .Role | green }}",
			Details: `
{{ "Description:" | faint }}	{{ .Description }}`,
		},
		Size: len(roleOptions),
	}

	i, _, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return roleOptions[i].Role, nil
}
