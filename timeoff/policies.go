package timeoff

import (
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// AUTHORIZATION POLICY - (actor role, target role, action) table
// =============================================================================

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// AllActions lists every action the policy decides on.
func AllActions() []Action {
	return []Action{ActionSubmit, ActionApprove, ActionReject}
}

// decidableTargets is the approve/reject half of the table: which requester
// roles an actor role may decide on.
var decidableTargets = map[Role][]Role{
	RoleUnassigned: nil,
	RoleEmployee:   nil,
	RoleBoss:       {RoleEmployee},
	RoleAdmin:      {RoleBoss},
}

// canSubmit is the submit half of the table (always for oneself).
var canSubmit = map[Role]bool{
	RoleUnassigned: false,
	RoleEmployee:   true,
	RoleBoss:       true,
	RoleAdmin:      false,
}

// CanActOn reports whether the role pair permits action. For submit the
// target is the actor's own role. Identity rules (no self-approval) are
// applied by Authorize, not here.
func CanActOn(actorRole, targetRole Role, action Action) bool {
	switch action {
	case ActionSubmit:
		return actorRole == targetRole && canSubmit[actorRole]
	case ActionApprove, ActionReject:
		for _, r := range decidableTargets[actorRole] {
			if r == targetRole {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Authorize applies the role table and the identity rules for actor acting
// on a request owned by requester.
func Authorize(actor Actor, requester Employee, action Action) error {
	deny := func(reason generic.ForbiddenReason, detail string) error {
		return &generic.ForbiddenError{
			ActorID: string(actor.ID),
			Action:  string(action),
			Reason:  reason,
			Detail:  detail,
		}
	}

	switch action {
	case ActionSubmit:
		if actor.ID != requester.ID {
			return deny(generic.ReasonNotSelf, "leave can only be requested for oneself")
		}
		if !CanActOn(requester.Role, requester.Role, action) {
			return deny(generic.ReasonSubmitNotAllowed,
				fmt.Sprintf("role %s may not request leave", requester.Role))
		}
		return nil

	case ActionApprove, ActionReject:
		if actor.ID == requester.ID {
			return deny(generic.ReasonSelfAction, fmt.Sprintf("cannot %s own request", action))
		}
		if !CanActOn(actor.Role, requester.Role, action) {
			return deny(generic.ReasonRolePair,
				fmt.Sprintf("role %s may not %s requests of role %s", actor.Role, action, requester.Role))
		}
		return nil
	}

	return deny(generic.ReasonRolePair, fmt.Sprintf("unknown action %q", action))
}

// CanView reports whether actor may read target's balance, ledger and
// requests: oneself, anyone whose requests the actor decides, or any admin.
func CanView(actor Actor, target Employee) bool {
	if actor.ID == target.ID || actor.Role == RoleAdmin {
		return true
	}
	return CanActOn(actor.Role, target.Role, ActionApprove)
}

// RequireAdmin guards administrative operations.
func RequireAdmin(actor Actor, action string) error {
	if actor.Role != RoleAdmin {
		return &generic.ForbiddenError{
			ActorID: string(actor.ID),
			Action:  action,
			Reason:  generic.ReasonAdminOnly,
			Detail:  fmt.Sprintf("%s requires role %s", action, RoleAdmin),
		}
	}
	return nil
}
