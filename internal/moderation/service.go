package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"atrium/internal/metrics"
	"atrium/internal/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine is the enforcement processor: it owns report intake and admin
// decisions against moderated entities. All writes against one entity are
// serialized behind a per-entity lock, and each commit is additionally
// conditioned on the entity revision the engine read, so a decision never
// lands on a state nobody observed.
type Engine struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an enforcement engine backed by the given store.
func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// entityLock returns the mutex serializing writes for one entity.
func (eng *Engine) entityLock(key string) *sync.Mutex {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	l, ok := eng.locks[key]
	if !ok {
		l = &sync.Mutex{}
		eng.locks[key] = l
	}
	return l
}

// RegisterEntity creates the moderation record for a newly created user
// or project. New entities start active with no reports. Registration is
// idempotent: re-registering an existing entity returns the stored record
// as long as the owner matches.
func (eng *Engine) RegisterEntity(ctx context.Context, kind EntityKind, id, ownerID string) (*Entity, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "entity_kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	if id == "" {
		return nil, &ValidationError{Field: "entity_id", Message: "entity id is required"}
	}
	if kind == KindUser {
		ownerID = id
	} else if ownerID == "" {
		return nil, &ValidationError{Field: "owner_id", Message: "projects require an owner"}
	}

	lock := eng.entityLock(EntityKey(kind, id))
	lock.Lock()
	defer lock.Unlock()

	existing, err := eng.store.GetEntity(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("load entity: %w", err)
	}
	if existing != nil {
		if existing.OwnerID != ownerID {
			return nil, &ValidationError{Field: "owner_id", Message: "entity already registered with a different owner"}
		}
		return existing, nil
	}

	now := time.Now()
	e := Entity{
		ID:        id,
		Kind:      kind,
		OwnerID:   ownerID,
		Status:    StatusActive,
		Rev:       1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := eng.store.CreateEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("create entity: %w", err)
	}

	log.Info().
		Str("kind", string(kind)).
		Str("entity_id", id).
		Str("owner_id", ownerID).
		Msg("moderation: entity registered")

	return &e, nil
}

// GetEntity loads one entity's moderation record.
func (eng *Engine) GetEntity(ctx context.Context, kind EntityKind, id string) (*Entity, error) {
	e, err := eng.store.GetEntity(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("load entity: %w", err)
	}
	if e == nil {
		return nil, &NotFoundError{Resource: "entity", ID: EntityKey(kind, id)}
	}
	return e, nil
}

// SubmitReport records a report against an entity and flips the entity to
// reported if it was active; additional reports while already reported
// leave the status untouched. Every report is stored independently, no
// deduplication. Self-reports are rejected.
func (eng *Engine) SubmitReport(ctx context.Context, kind EntityKind, entityID, reporterID string, reportReason Reason, details string) (*Report, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "entity_kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	if reporterID == "" {
		return nil, &ValidationError{Field: "reporter_id", Message: "reporter id is required"}
	}
	if strings.ContainsAny(string(reportReason), ",;") {
		return nil, &ValidationError{Field: "reason", Message: "exactly one report category per report"}
	}
	if !reportReason.Valid() {
		return nil, &ValidationError{Field: "reason", Message: fmt.Sprintf("unknown report category %q", reportReason)}
	}

	ctx, span := tracing.ReportSpan(ctx, string(kind), entityID)
	var err error
	defer func() { tracing.End(span, err) }()

	lock := eng.entityLock(EntityKey(kind, entityID))
	lock.Lock()
	defer lock.Unlock()

	ent, err := eng.store.GetEntity(ctx, kind, entityID)
	if err != nil {
		return nil, fmt.Errorf("load entity: %w", err)
	}
	if ent == nil {
		err = &NotFoundError{Resource: "entity", ID: EntityKey(kind, entityID)}
		return nil, err
	}
	if reporterID == ent.OwnerID {
		err = &ValidationError{Field: "reporter_id", Message: "you cannot report your own content"}
		return nil, err
	}

	now := time.Now()
	rep := Report{
		ID:          uuid.NewString(),
		EntityKind:  kind,
		EntityID:    entityID,
		ReporterID:  reporterID,
		Reason:      reportReason,
		Details:     details,
		Status:      ReportStatusPending,
		SubmittedAt: now,
	}

	expectedRev := ent.Rev
	if ent.Status == StatusActive {
		ent.Status = StatusReported
	}
	ent.Rev++
	ent.UpdatedAt = now

	if err = eng.store.CommitReport(ctx, *ent, expectedRev, rep); err != nil {
		return nil, fmt.Errorf("commit report: %w", err)
	}

	metrics.ReportsSubmittedTotal.WithLabelValues(string(reportReason), string(kind)).Inc()
	eng.refreshPendingGauge(ctx)

	log.Info().
		Str("report_id", rep.ID).
		Str("kind", string(kind)).
		Str("entity_id", entityID).
		Str("reporter_id", reporterID).
		Str("reason", string(reportReason)).
		Str("status", string(ent.Status)).
		Msg("moderation: report submitted")

	return &rep, nil
}

// ApplyAction executes an admin decision as one atomic unit: validate the
// action's parameters, validate the transition, resolve the full pending
// report queue, write the new status/sanction/warning and the audit entry
// together, or fail leaving all state unchanged.
func (eng *Engine) ApplyAction(ctx context.Context, kind EntityKind, id string, action Action, adminID string) (*Entity, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "entity_kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	if adminID == "" {
		return nil, &ValidationError{Field: "admin_id", Message: "acting admin id is required"}
	}

	ctx, span := tracing.DecisionSpan(ctx, string(action.Kind()), string(kind), id)
	var err error
	defer func() { tracing.End(span, err) }()

	lock := eng.entityLock(EntityKey(kind, id))
	lock.Lock()
	defer lock.Unlock()

	ent, err := eng.store.GetEntity(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("load entity: %w", err)
	}
	if ent == nil {
		err = &NotFoundError{Resource: "entity", ID: EntityKey(kind, id)}
		return nil, err
	}

	if err = action.Validate(); err != nil {
		return nil, err
	}

	next, err := NextStatus(kind, ent.Status, action.Kind())
	if err != nil {
		metrics.InvalidTransitionsTotal.Inc()
		log.Warn().
			Str("kind", string(kind)).
			Str("entity_id", id).
			Str("status", string(ent.Status)).
			Str("action", string(action.Kind())).
			Str("admin_id", adminID).
			Msg("moderation: action rejected by transition table")
		return nil, err
	}

	pending, err := eng.store.ListPendingReports(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("list pending reports: %w", err)
	}

	now := time.Now()
	expectedRev := ent.Rev

	switch a := action.(type) {
	case Warn:
		ent.Warnings = append(ent.Warnings, Warning{Reason: a.Reason, IssuedBy: adminID, IssuedAt: now})
	case Suspend:
		d := a.DurationHours
		ent.Sanction = &Sanction{Kind: SanctionSuspension, Reason: a.Reason, StartedAt: now, DurationHours: &d}
	case Ban:
		ent.Sanction = &Sanction{Kind: SanctionBan, Reason: a.Reason, StartedAt: now, DurationHours: a.DurationHours}
	case Unsuspend:
		ent.Sanction = nil
	}

	ent.Status = next
	ent.Rev++
	ent.UpdatedAt = now

	audit := AuditEntry{
		ID:         uuid.NewString(),
		Action:     action.Kind(),
		ActorID:    adminID,
		EntityKind: kind,
		EntityID:   id,
		Reason:     reason(action),
		Timestamp:  now,
	}

	if action.Kind() == ActionPermanentDelete {
		err = eng.store.CommitDelete(ctx, *ent, expectedRev, audit)
	} else {
		err = eng.store.CommitDecision(ctx, *ent, expectedRev, resolutionFor(action, pending, adminID, now), audit)
	}
	if err != nil {
		if _, conflict := AsConflict(err); conflict {
			metrics.ActionConflictsTotal.Inc()
		}
		return nil, fmt.Errorf("commit decision: %w", err)
	}

	metrics.ActionsAppliedTotal.WithLabelValues(string(action.Kind()), string(kind)).Inc()
	eng.refreshPendingGauge(ctx)

	log.Info().
		Str("kind", string(kind)).
		Str("entity_id", id).
		Str("action", string(action.Kind())).
		Str("status", string(ent.Status)).
		Str("admin_id", adminID).
		Int("reports_resolved", len(pending)).
		Msg("moderation: action applied")

	return ent, nil
}

// DismissReports resolves every pending report against an entity without
// sanctioning and reverts a reported entity to active.
func (eng *Engine) DismissReports(ctx context.Context, kind EntityKind, id, adminID string) (*Entity, error) {
	return eng.ApplyAction(ctx, kind, id, Dismiss{}, adminID)
}

// resolutionFor decides what happens to the pending report queue for a
// given action. A decision consumes the full queue: dismiss marks every
// pending report dismissed, any action that sets a sanction or warning
// (or hides a project) marks them actioned. Unsuspend and restore close
// out a sanction rather than answer reports and leave the queue alone.
func resolutionFor(action Action, pending []Report, adminID string, now time.Time) ReportResolution {
	res := ReportResolution{ResolvedBy: adminID, ResolvedAt: now}

	switch action.Kind() {
	case ActionDismiss:
		res.Status = ReportStatusDismissed
	case ActionWarn, ActionSuspend, ActionBan, ActionHide:
		res.Status = ReportStatusActioned
	default:
		return res
	}

	res.IDs = make([]string, 0, len(pending))
	for _, r := range pending {
		res.IDs = append(res.IDs, r.ID)
	}
	return res
}

// QueueEntry is one row of the admin review queue: the entity, its
// unresolved reports, its live sanction clock and the actions an admin
// may legally take from here.
type QueueEntry struct {
	Entity         Entity       `json:"entity"`
	PendingReports []Report     `json:"pending_reports"`
	SanctionLeft   *Remaining   `json:"sanction_remaining,omitempty"`
	AllowedActions []ActionKind `json:"allowed_actions,omitempty"`
}

// ListReportQueue assembles the admin review queue for one entity kind:
// every entity whose status puts it in the queue, newest activity first.
// Pending reports are fetched concurrently per entity.
func (eng *Engine) ListReportQueue(ctx context.Context, kind EntityKind) ([]QueueEntry, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Field: "entity_kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}

	entities, err := eng.store.ListEntities(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	var queued []Entity
	for _, e := range entities {
		if InAdminQueue(&e) {
			queued = append(queued, e)
		}
	}

	now := time.Now()
	entries := make([]QueueEntry, len(queued))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range queued {
		g.Go(func() error {
			pending, err := eng.store.ListPendingReports(gctx, e.Kind, e.ID)
			if err != nil {
				return fmt.Errorf("pending reports for %s: %w", e.Key(), err)
			}
			entries[i] = QueueEntry{
				Entity:         e,
				PendingReports: pending,
				SanctionLeft:   SanctionRemaining(e.Sanction, now),
				AllowedActions: AllowedActions(e.Kind, e.Status),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Entity.UpdatedAt.After(entries[j].Entity.UpdatedAt)
	})
	return entries, nil
}

// ListReports returns the full report history for one entity in
// submission order, resolved and pending alike.
func (eng *Engine) ListReports(ctx context.Context, kind EntityKind, id string) ([]Report, error) {
	if _, err := eng.GetEntity(ctx, kind, id); err != nil {
		return nil, err
	}
	return eng.store.ListReports(ctx, kind, id)
}

// AuditLog returns the most recent enforcement audit entries, newest
// first. Limit defaults to 50 and is capped at 500.
func (eng *Engine) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return eng.store.ListAuditLog(ctx, limit)
}

// refreshPendingGauge re-reads the pending report count after a write.
func (eng *Engine) refreshPendingGauge(ctx context.Context) {
	count, err := eng.store.CountPendingReports(ctx)
	if err != nil {
		log.Error().Err(err).Msg("moderation: failed to count pending reports")
		return
	}
	metrics.ReportsPending.Set(float64(count))
}

// AsConflict unwraps a *ConcurrencyConflictError from an error chain.
func AsConflict(err error) (*ConcurrencyConflictError, bool) {
	var cerr *ConcurrencyConflictError
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}
