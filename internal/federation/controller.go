package federation

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuth is the kind for authorization failures. Every ErrAuth surfaced
// to a caller is also recorded in the audit log.
var ErrAuth = errors.New("authorization denied")

// Decision is the result of the authorization decision function.
type Decision struct {
	Allowed bool
	Reason  string
}

type grantKey struct {
	user string
	repo string
	role DelegationRole
}

// AccessController owns the trust state for one federation: which users
// hold which roles on which repositories, and which repository-to-
// repository delegations exist. It enforces the three authorization
// invariants: no privilege escalation (access implies a grant), bounded
// delegation (delegating a role requires holding it), and complete
// revocation (revoked access stays gone until regranted).
type AccessController struct {
	grants      map[grantKey]struct{}
	delegations []*GrantDelegation
	audit       *AuditLog

	// now is the clock; tests pin it for expiry scenarios.
	now func() time.Time
}

// NewAccessController creates a controller writing to the given audit
// log. A nil log gets a fresh one.
func NewAccessController(audit *AuditLog) *AccessController {
	if audit == nil {
		audit = NewAuditLog()
	}
	return &AccessController{
		grants: make(map[grantKey]struct{}),
		audit:  audit,
		now:    time.Now,
	}
}

// Audit returns the controller's audit log.
func (c *AccessController) Audit() *AuditLog {
	return c.audit
}

// =============================================================================
// USER GRANTS
// =============================================================================

// Grant gives a user a role on a repository.
func (c *AccessController) Grant(user, repo string, role DelegationRole) {
	c.grants[grantKey{user, repo, role}] = struct{}{}
	c.audit.Append(AuditEvent{
		Kind:     EventGrantIssued,
		Actor:    user,
		Resource: repo,
		Action:   string(role),
		Outcome:  OutcomeSuccess,
	})
}

// Revoke removes a user's role on a repository. Access checks for the
// triple are false afterwards until regranted.
func (c *AccessController) Revoke(user, repo string, role DelegationRole) {
	delete(c.grants, grantKey{user, repo, role})
	c.audit.Append(AuditEvent{
		Kind:     EventGrantRevoked,
		Actor:    user,
		Resource: repo,
		Action:   string(role),
		Outcome:  OutcomeSuccess,
	})
}

// HasGrant reports whether a grant establishes the role for the user on
// the repository.
func (c *AccessController) HasGrant(user, repo string, role DelegationRole) bool {
	_, ok := c.grants[grantKey{user, repo, role}]
	return ok
}

// Access is the audited access check. It admits exactly the triples a
// grant establishes — access never exceeds the grant table.
func (c *AccessController) Access(user, repo string, role DelegationRole) bool {
	allowed := c.HasGrant(user, repo, role)
	outcome := OutcomeAllowed
	if !allowed {
		outcome = OutcomeDenied
	}
	c.audit.Append(AuditEvent{
		Kind:     EventAccessCheck,
		Actor:    user,
		Resource: repo,
		Action:   string(role),
		Outcome:  outcome,
	})
	return allowed
}

// =============================================================================
// DELEGATION
// =============================================================================

// Delegate transfers a user's role from the grantor repository to the
// grantee repository, bounded by the constraint. The delegation is
// refused when the user does not already hold the role on the grantor:
// a delegation can never mint authority.
func (c *AccessController) Delegate(grantor, grantee, user string, role DelegationRole, constraint GrantConstraint) (*GrantDelegation, error) {
	if !c.HasGrant(user, grantor, role) {
		c.audit.Append(AuditEvent{
			Kind:     EventGrantDelegationDenied,
			Actor:    user,
			Resource: grantee,
			Action:   string(role),
			Outcome:  OutcomeDenied,
			Details:  map[string]string{"grantor": grantor},
		})
		return nil, fmt.Errorf("%w: %s does not hold %s on %s", ErrAuth, user, role, grantor)
	}

	delegation := &GrantDelegation{
		Grantor:    grantor,
		Grantee:    grantee,
		Roles:      map[DelegationRole]struct{}{role: {}},
		Constraint: constraint,
		CreatedAt:  c.now(),
		CreatedBy:  user,
		Active:     true,
	}
	c.delegations = append(c.delegations, delegation)
	c.grants[grantKey{user, grantee, role}] = struct{}{}

	c.audit.Append(AuditEvent{
		Kind:     EventGrantDelegated,
		Actor:    user,
		Resource: grantee,
		Action:   string(role),
		Outcome:  OutcomeSuccess,
		Details:  map[string]string{"grantor": grantor},
	})
	return delegation, nil
}

// RevokeDelegation deactivates every delegation from grantor to grantee
// carrying the role, and withdraws the user grants those delegations
// established. Returns the number of delegations deactivated.
func (c *AccessController) RevokeDelegation(grantor, grantee string, role DelegationRole) int {
	revoked := 0
	for _, d := range c.delegations {
		if d.Grantor == grantor && d.Grantee == grantee && d.Active && d.HasRole(role) {
			d.Active = false
			delete(c.grants, grantKey{d.CreatedBy, grantee, role})
			revoked++
			c.audit.Append(AuditEvent{
				Kind:     EventGrantDelegationRevoked,
				Actor:    d.CreatedBy,
				Resource: grantee,
				Action:   string(role),
				Outcome:  OutcomeSuccess,
				Details:  map[string]string{"grantor": grantor},
			})
		}
	}
	return revoked
}

// Delegations returns the delegations targeting a grantee repository.
func (c *AccessController) Delegations(grantee string) []*GrantDelegation {
	var out []*GrantDelegation
	for _, d := range c.delegations {
		if d.Grantee == grantee {
			out = append(out, d)
		}
	}
	return out
}

// =============================================================================
// DECISION FUNCTION
// =============================================================================

// Decide is the authorization decision function for cross-repo
// requirement access: it admits the request iff some delegation to the
// grantee repository is active, unexpired, carries the requested role,
// and its constraint admits the requested requirement. Every decision is
// audited.
func (c *AccessController) Decide(grantee, reqID, category string, role DelegationRole) Decision {
	now := c.now()
	decision := Decision{Allowed: false, Reason: "no delegation admits the request"}

	for _, d := range c.delegations {
		if d.Grantee != grantee {
			continue
		}
		if d.AllowsAccess(reqID, category, role, now) {
			decision = Decision{Allowed: true, Reason: fmt.Sprintf("delegation from %s", d.Grantor)}
			break
		}
	}

	outcome := OutcomeAllowed
	if !decision.Allowed {
		outcome = OutcomeDenied
	}
	c.audit.Append(AuditEvent{
		Kind:     EventAccessDecision,
		Actor:    grantee,
		Resource: reqID,
		Action:   string(role),
		Outcome:  outcome,
		Details:  map[string]string{"category": category, "reason": decision.Reason},
	})
	return decision
}
