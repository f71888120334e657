package analytics

import (
	"context"
	"fmt"
	"strings"

	"slimmers/internal/access"
	"slimmers/internal/events"
	"slimmers/internal/timeframe"
)

// Query is the raw dashboard query as received from the caller.
type Query struct {
	StartDate string `query:"startDate"`
	EndDate   string `query:"endDate"`
	Path      string `query:"path"`
	Kind      string `query:"kind"`
}

// ValidationError reports a malformed query. No store query runs when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseFilter turns a raw query into a filter, failing on any bound it cannot honour.
func ParseFilter(q Query) (events.Filter, error) {
	r, err := timeframe.ParseRange(q.StartDate, q.EndDate)
	if err != nil {
		return events.Filter{}, &ValidationError{Field: "date range", Message: err.Error()}
	}

	kind, err := events.ParseKind(strings.TrimSpace(q.Kind))
	if err != nil {
		return events.Filter{}, &ValidationError{Field: "kind", Message: err.Error()}
	}

	return events.Filter{
		Kind:            kind,
		Since:           r.From,
		Until:           r.To,
		SubjectContains: strings.TrimSpace(q.Path),
	}, nil
}

// Report is the dashboard payload: the filtered summary next to the
// trailing activity windows.
type Report struct {
	Summary  *Summary  `json:"summary"`
	Activity *Activity `json:"activity"`
}

// Service is the gated entry point to the engine.
type Service struct {
	gate   access.Gate
	engine *Engine
}

func NewService(gate access.Gate, engine *Engine) *Service {
	return &Service{gate: gate, engine: engine}
}

func (s *Service) prepare(ctx context.Context, caller *access.Identity, q Query) (events.Filter, error) {
	if err := s.gate.Authorize(ctx, caller); err != nil {
		return events.Filter{}, err
	}
	return ParseFilter(q)
}

// Summary authorizes the caller, then computes the summary and activity windows.
func (s *Service) Summary(ctx context.Context, caller *access.Identity, q Query) (*Report, error) {
	f, err := s.prepare(ctx, caller, q)
	if err != nil {
		return nil, err
	}

	summary, err := s.engine.ComputeSummary(ctx, f)
	if err != nil {
		return nil, err
	}
	activity, err := s.engine.ComputeActivity(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Report{Summary: summary, Activity: activity}, nil
}

func (s *Service) Activity(ctx context.Context, caller *access.Identity, q Query) (*Activity, error) {
	f, err := s.prepare(ctx, caller, q)
	if err != nil {
		return nil, err
	}
	return s.engine.ComputeActivity(ctx, f)
}

func (s *Service) ScanReport(ctx context.Context, caller *access.Identity, q Query) (*ScanReport, error) {
	f, err := s.prepare(ctx, caller, q)
	if err != nil {
		return nil, err
	}
	return s.engine.ComputeScanReport(ctx, f)
}
