/*
authz.go - Role-based authorization for workflow actions

PURPOSE:
  Single decision point for "may this identity perform this action on this
  request". Handlers and services never test roles directly; they ask the
  Authorizer and propagate its verdict.

RULES:
  create_request  staff only
  edit_request    staff only, and only the requester of the request
  decide_level1   approver_level_1, never the requester (no self-approval)
  decide_level2   approver_level_2, never the requester
  view_finance    finance only; a specific request is visible to finance
                  only once it is approved

  Status preconditions other than the finance-visibility rule are NOT
  authorization: editing a level-2 request fails with ErrInvalidState in the
  ledger, after authorization has passed. Authorization failures always win
  over state failures because they are checked first.

DENY BY DEFAULT:
  Unknown roles and unknown actions are denied. Authorization never has
  side effects.

SEE ALSO:
  - types.go: Role, Action, RoleResolver
  - ledger.go, workflow.go: The callers
*/
package procure

import "context"

// Authorizer resolves the caller's role and applies the action rules.
type Authorizer struct {
	roles RoleResolver
}

func NewAuthorizer(roles RoleResolver) *Authorizer {
	return &Authorizer{roles: roles}
}

// Authorize returns nil if identity may perform action. For actions scoped to
// a request (edit, decide, finance view of one request), req carries it;
// create_request and list-level finance checks pass req == nil.
func (a *Authorizer) Authorize(ctx context.Context, identity UserID, action Action, req *PurchaseRequest) error {
	role, err := a.roles.ResolveRole(ctx, identity)
	if err != nil {
		return err
	}
	return Check(role, identity, action, req)
}

// Check is the pure authorization rule set. It never touches storage.
func Check(role Role, identity UserID, action Action, req *PurchaseRequest) error {
	deny := func(reason string) error {
		return &PermissionError{Identity: identity, Action: action, Reason: reason}
	}

	switch action {
	case ActionCreateRequest:
		if role != RoleStaff {
			return deny("requires staff role, have " + string(role))
		}
		return nil

	case ActionEditRequest:
		if role != RoleStaff {
			return deny("requires staff role, have " + string(role))
		}
		if req == nil {
			return deny("no request in scope")
		}
		if req.RequestedBy != identity {
			return deny("only the requester may edit")
		}
		return nil

	case ActionDecideLevel1, ActionDecideLevel2:
		want := RoleApproverL1
		if action == ActionDecideLevel2 {
			want = RoleApproverL2
		}
		if role != want {
			return deny("requires " + string(want) + " role, have " + string(role))
		}
		if req == nil {
			return deny("no request in scope")
		}
		if req.RequestedBy == identity {
			return deny("requester may not decide own request")
		}
		return nil

	case ActionViewFinance:
		if role != RoleFinance {
			return deny("requires finance role, have " + string(role))
		}
		if req != nil && req.Status != StatusApproved {
			return deny("request is not approved")
		}
		return nil
	}

	return deny("unknown action")
}
