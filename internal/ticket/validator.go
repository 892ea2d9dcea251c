package ticket

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// Identifier methods recorded on validation events.
const (
	MethodPayload = "payload"
	MethodNumber  = "number"
)

// BulkLimit caps how many identifiers one bulk validation may carry.
const BulkLimit = 100

// Admission window relative to the event start.
const (
	guardBefore = time.Hour
	guardAfter  = 2 * time.Hour
)

var numberRe = regexp.MustCompile(`^[0-9]+-[0-9]+-[0-9]+$`)

// Request is one validation attempt from a scanner.
type Request struct {
	Identifier string `json:"identifier"`
	SystemID   string `json:"system_id"`
	Location   string `json:"location"`
	MarkUsed   bool   `json:"mark_as_used"`
	Action     string `json:"action"` // check_in (default), check_out
}

// Result is the per-attempt outcome. Remaining counts admissions left after
// this attempt.
type Result struct {
	Valid        bool   `json:"valid"`
	Reason       string `json:"reason,omitempty"`
	TicketID     uint64 `json:"ticket_id,omitempty"`
	TicketNumber string `json:"ticket_number,omitempty"`
	Status       string `json:"status,omitempty"`
	UsageCount   uint32 `json:"usage_count"`
	MaxUsage     uint32 `json:"max_usage"`
	Remaining    uint32 `json:"remaining"`
}

// BulkSummary aggregates a bulk validation run.
type BulkSummary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// Validator checks tickets at the door. Every resolved attempt appends a
// ValidationEvent, successful or not; usage increments run under the ticket
// row lock so two scanners cannot both take the last admission.
type Validator struct {
	codec   *Codec
	tickets *repository.TicketRepo
	events  *repository.EventRepo
	now     func() time.Time
}

// NewValidator wires the validator.
func NewValidator(codec *Codec, tickets *repository.TicketRepo, events *repository.EventRepo) *Validator {
	return &Validator{codec: codec, tickets: tickets, events: events, now: time.Now}
}

// Validate runs the full validation contract for one identifier.
func (v *Validator) Validate(ctx context.Context, req Request) (Result, error) {
	if req.Action == "" {
		req.Action = model.ActionCheckIn
	}
	if req.Action != model.ActionCheckIn && req.Action != model.ActionCheckOut {
		return Result{}, domain.Validationf("action %q", req.Action)
	}

	t, method, reason, err := v.resolve(ctx, req.Identifier)
	if err != nil {
		return Result{}, err
	}
	if t == nil {
		// Nothing to log against: the identifier never matched a row.
		return Result{Reason: reason}, nil
	}

	now := v.now()
	tx, err := v.tickets.DB().BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	locked, err := v.tickets.GetForUpdateTx(ctx, tx, t.ID)
	if err != nil {
		return Result{}, err
	}
	usageBefore := locked.UsageCount

	if reason == "" {
		reason = v.check(ctx, locked, now)
	}
	// check_in consumes an admission; check_out is logged only.
	consume := reason == "" && req.MarkUsed && req.Action == model.ActionCheckIn
	if consume {
		if err := v.tickets.MarkUsedTx(ctx, tx, locked, now); err != nil {
			return Result{}, err
		}
	}
	if err := v.tickets.AppendValidationTx(ctx, tx, &model.ValidationEvent{
		TicketID:    locked.ID,
		Result:      reason == "",
		Reason:      reason,
		Method:      method,
		Action:      req.Action,
		SystemID:    req.SystemID,
		Location:    req.Location,
		UsageBefore: usageBefore,
		UsageAfter:  locked.UsageCount,
		OccurredAt:  now,
	}); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	committed = true

	res := Result{
		Valid:        reason == "",
		Reason:       reason,
		TicketID:     locked.ID,
		TicketNumber: locked.TicketNumber,
		Status:       locked.Status,
		UsageCount:   locked.UsageCount,
		MaxUsage:     locked.MaxUsage,
	}
	if locked.MaxUsage > locked.UsageCount {
		res.Remaining = locked.MaxUsage - locked.UsageCount
	}
	return res, nil
}

// ValidateBulk runs up to BulkLimit validations and summarizes the outcomes.
func (v *Validator) ValidateBulk(ctx context.Context, reqs []Request) ([]Result, BulkSummary, error) {
	if len(reqs) == 0 {
		return nil, BulkSummary{}, domain.Validationf("empty identifier list")
	}
	if len(reqs) > BulkLimit {
		return nil, BulkSummary{}, domain.Validationf("at most %d identifiers per bulk validation", BulkLimit)
	}
	results := make([]Result, 0, len(reqs))
	var sum BulkSummary
	for _, req := range reqs {
		res, err := v.Validate(ctx, req)
		if err != nil {
			return nil, BulkSummary{}, err
		}
		results = append(results, res)
		sum.Total++
		if res.Valid {
			sum.Valid++
		} else {
			sum.Invalid++
		}
	}
	return results, sum, nil
}

// resolve maps an identifier to its stored ticket. A failed cross-field or
// skew check still resolves the row, returning it with a rejection reason so
// the attempt can be logged against it.
func (v *Validator) resolve(ctx context.Context, identifier string) (*model.DigitalTicket, string, string, error) {
	if numberRe.MatchString(identifier) {
		t, err := v.tickets.GetByNumber(ctx, identifier)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, MethodNumber, "ticket not found", nil
		}
		if err != nil {
			return nil, MethodNumber, "", err
		}
		return t, MethodNumber, "", nil
	}

	claims, err := v.codec.Open(identifier)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, MethodPayload, "payload authentication failed", nil
		}
		return nil, MethodPayload, "", err
	}
	t, err := v.tickets.GetByID(ctx, claims.TicketID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, MethodPayload, "ticket not found", nil
	}
	if err != nil {
		return nil, MethodPayload, "", err
	}
	if reason := matchClaims(claims, t); reason != "" {
		return t, MethodPayload, reason, nil
	}
	return t, MethodPayload, "", nil
}

// matchClaims verifies every payload field against the stored row, including
// the creation-instant skew guard against replayed obsolete payloads.
func matchClaims(c Claims, t *model.DigitalTicket) string {
	switch {
	case c.TicketNumber != t.TicketNumber,
		c.EventID != t.EventID,
		c.CustomerID != t.CustomerID,
		c.ZoneID != t.ZoneID,
		!seatsEqual(c.SeatID, t.SeatID),
		c.MaxUsage != t.MaxUsage:
		return "payload does not match ticket"
	}
	skew := time.Unix(c.CreatedAt, 0).Sub(t.CreatedAt)
	if skew < -maxCreatedSkew || skew > maxCreatedSkew {
		return "stale payload"
	}
	return ""
}

func (v *Validator) check(ctx context.Context, t *model.DigitalTicket, now time.Time) string {
	// A ticket that ran out of admissions reads as used; report the limit,
	// not the derived status.
	if t.UsageCount >= t.MaxUsage {
		return "usage limit"
	}
	if t.Status != model.TicketActive {
		return "ticket " + t.Status
	}
	if now.Before(t.ValidFrom) || now.After(t.ValidUntil) {
		return "outside validity window"
	}
	ev, err := v.events.GetByID(ctx, t.EventID)
	if err != nil {
		return "event lookup failed"
	}
	if now.Before(ev.StartsAt.Add(-guardBefore)) || now.After(ev.StartsAt.Add(guardAfter)) {
		return "outside event admission window"
	}
	return ""
}

func seatsEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
