package access

import (
	"context"

	"github.com/marmos91/postmaster/pkg/controlplane/models"
)

// Guard combines the role policy and object-level resolution into the
// two-step check every administrative operation performs.
type Guard struct {
	Policy   *Policy
	Resolver *Resolver
}

// NewGuard creates a Guard.
func NewGuard(policy *Policy, resolver *Resolver) *Guard {
	return &Guard{Policy: policy, Resolver: resolver}
}

// Require checks that actor's role allows act on res and, when target is
// not nil, that actor can access the target object.
func (g *Guard) Require(ctx context.Context, actor *models.Account, res Resource, act Action, target models.Object) error {
	if err := g.Policy.Check(actor, res, act); err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	return g.Resolver.RequireAccess(ctx, actor, target.ObjectRef())
}

// CanAccess reports whether actor can access target.
func (g *Guard) CanAccess(ctx context.Context, actor *models.Account, target models.Object) (bool, error) {
	return g.Resolver.CanAccess(ctx, actor, target.ObjectRef())
}

// Filter returns the objects of items actor can access, preserving order.
func Filter[T models.Object](ctx context.Context, g *Guard, actor *models.Account, items []T) ([]T, error) {
	if actor != nil && actor.IsSuperuser {
		return items, nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := g.CanAccess(ctx, actor, item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
