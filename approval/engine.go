/*
engine.go - Submit / Resolve / ExpireStale

PURPOSE:
  The engine validates a request against the roster, fixes its routing,
  and later resolves it exactly once. Approval drives the ledger through
  the Effects interface; the effect's outcome (or failure) rides back on
  the resolution result.

ROUTING (fixed at creation):
  employee request -> resolvable by Owner or HR
  HR request       -> resolvable by Owner
  Owner request    -> resolvable by HR

  Resolving your own request is refused. Owner self-approval is a
  deployment policy, off by default, for single-owner organizations
  where nobody else could resolve an Owner's request; it lets the
  requesting Owner through despite the eligible set, and nobody else.

SEE ALSO:
  - types.go: Request, Store, Effects
  - registry: role resolution
*/
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/standup/attendance-engine/ledger"
	"github.com/standup/attendance-engine/registry"
	"github.com/standup/attendance-engine/workday"
)

// Roles is the slice of the roster the engine needs.
// Satisfied by *registry.Roster.
type Roles interface {
	RoleOf(ctx context.Context, who registry.Identity) (registry.Role, error)
	Resolve(ctx context.Context, id registry.EmployeeID) (*registry.Employee, error)
}

// Engine owns the request lifecycle.
type Engine struct {
	store   Store
	roster  Roles
	effects Effects
	log     *zap.Logger
	now     func() time.Time

	// allowOwnerSelf lets an Owner resolve their own requests.
	allowOwnerSelf bool
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithOwnerSelfApproval enables Owner resolution of Owner-submitted
// requests.
func WithOwnerSelfApproval() Option {
	return func(e *Engine) { e.allowOwnerSelf = true }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, roster Roles, effects Effects, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		roster:  roster,
		effects: effects,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and files a new pending request. The requester's role
// is resolved once, here, and the eligible set is frozen into the
// request.
func (e *Engine) Submit(ctx context.Context, kind Kind, requester registry.Identity, employee registry.EmployeeID, day workday.Day, payload string) (*Request, error) {
	role, err := e.roster.RoleOf(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("resolve requester role: %w", err)
	}
	if role == registry.RoleUnknown {
		return nil, fmt.Errorf("submit by %s: %w", requester, ErrUnknownRequester)
	}
	if _, err := e.roster.Resolve(ctx, employee); err != nil {
		return nil, fmt.Errorf("submit for %s: %w", employee, ErrUnknownEmployee)
	}

	req := Request{
		ID:            uuid.NewString(),
		Kind:          kind,
		Requester:     requester,
		RequesterRole: role,
		Employee:      employee,
		Day:           day,
		Payload:       payload,
		Eligible:      e.routeFor(role),
		Status:        StatusPending,
		CreatedAt:     e.now(),
	}
	if err := e.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("file request: %w", err)
	}

	e.log.Info("request filed",
		zap.String("request", req.ID),
		zap.String("kind", string(kind)),
		zap.String("requester", string(requester)),
		zap.String("employee", string(employee)),
		zap.String("day", day.String()))
	return &req, nil
}

func (e *Engine) routeFor(requester registry.Role) []registry.Role {
	switch requester {
	case registry.RoleHR:
		return []registry.Role{registry.RoleOwner}
	case registry.RoleOwner:
		return []registry.Role{registry.RoleHR}
	default:
		return []registry.Role{registry.RoleOwner, registry.RoleHR}
	}
}

// =============================================================================
// RESOLVE
// =============================================================================

// Result is the outcome of a resolution. Exactly one of Record / Leave
// is set on an applied approval, matching the request kind. Warning is
// non-nil when the resolution stands but the ledger effect failed.
type Result struct {
	Request *Request
	Record  *ledger.Record
	Leave   *ledger.LeaveResult
	Warning error
}

// Resolve approves or rejects a pending request. Eligibility is checked
// against the resolver's current role; the transition itself is a
// compare-and-set in the store, so two concurrent resolvers cannot both
// win.
func (e *Engine) Resolve(ctx context.Context, id string, resolver registry.Identity, approve bool) (*Result, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Resolved() {
		return nil, fmt.Errorf("resolve %s: %w", id, ErrAlreadyResolved)
	}

	role, err := e.roster.RoleOf(ctx, resolver)
	if err != nil {
		return nil, fmt.Errorf("resolve resolver role: %w", err)
	}
	if resolver == req.Requester {
		// The self-approval policy lets the requesting Owner through
		// despite the eligible set; everyone else is refused outright.
		if !(e.allowOwnerSelf && req.RequesterRole == registry.RoleOwner) {
			return nil, fmt.Errorf("resolve %s: %w", id, ErrSelfApproval)
		}
	} else if !req.EligibleFor(role) {
		return nil, fmt.Errorf("resolve %s as %s: %w", id, role, ErrNotEligible)
	}

	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	resolved, err := e.store.MarkResolved(ctx, id, status, resolver, e.now())
	if err != nil {
		return nil, err
	}

	e.log.Info("request resolved",
		zap.String("request", id),
		zap.String("status", string(status)),
		zap.String("resolver", string(resolver)))

	res := &Result{Request: resolved}
	if !approve {
		return res, nil
	}

	// The resolution is already durable. An effect failure is reported,
	// not rolled back; operators retry the effect out of band.
	switch resolved.Kind {
	case KindResubmission:
		if err := e.effects.GrantOverride(ctx, resolved.Employee, resolved.Day); err != nil {
			res.Warning = fmt.Errorf("grant override: %w", err)
		}
	case KindEdit:
		rec, err := e.effects.ApplyEdit(ctx, resolved.Employee, resolved.Day, resolved.Payload)
		if err != nil {
			res.Warning = fmt.Errorf("apply edit: %w", err)
		} else {
			res.Record = rec
		}
	case KindLeave:
		lv, err := e.effects.RecordLeave(ctx, resolved.Employee, resolved.Day, resolved.Payload, resolver)
		if err != nil {
			res.Warning = fmt.Errorf("record leave: %w", err)
		} else {
			res.Leave = lv
		}
	}
	if res.Warning != nil {
		e.log.Warn("approved effect failed",
			zap.String("request", id),
			zap.Error(res.Warning))
	}
	return res, nil
}

// Pending lists open requests visible to the given resolver's role.
// An empty role lists everything (admin surfaces).
func (e *Engine) Pending(ctx context.Context, role registry.Role) ([]Request, error) {
	all, err := e.store.PendingRequests(ctx)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return all, nil
	}
	var out []Request
	for _, r := range all {
		if r.EligibleFor(role) {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// EXPIRY
// =============================================================================

// ExpireStale expires pending requests older than maxAge and returns
// them. Run periodically from the server.
func (e *Engine) ExpireStale(ctx context.Context, maxAge time.Duration) ([]Request, error) {
	cutoff := e.now().Add(-maxAge)
	expired, err := e.store.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire stale requests: %w", err)
	}
	for _, r := range expired {
		e.log.Info("request expired",
			zap.String("request", r.ID),
			zap.String("kind", string(r.Kind)),
			zap.Time("created_at", r.CreatedAt))
	}
	return expired, nil
}
