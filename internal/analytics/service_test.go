package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slimmers/internal/access"
	"slimmers/internal/events"
	"slimmers/internal/timeframe"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CountPartition(ctx context.Context, f events.Filter, p Partition) (PartitionCount, error) {
	args := m.Called(ctx, f, p)
	return args.Get(0).(PartitionCount), args.Error(1)
}

func (m *MockStore) SubjectBreakdown(ctx context.Context, f events.Filter, p Partition) ([]SubjectCount, error) {
	args := m.Called(ctx, f, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SubjectCount), args.Error(1)
}

func (m *MockStore) DailySeries(ctx context.Context, f events.Filter, limit int) ([]DailyCount, error) {
	args := m.Called(ctx, f, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DailyCount), args.Error(1)
}

func (m *MockStore) DistinctSessionsBetween(ctx context.Context, f events.Filter, since, until time.Time) (int64, error) {
	args := m.Called(ctx, f, since, until)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) TopExercises(ctx context.Context, f events.Filter, limit int) ([]ExerciseCount, error) {
	args := m.Called(ctx, f, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ExerciseCount), args.Error(1)
}

func (m *MockStore) EquipmentBreakdown(ctx context.Context, f events.Filter) ([]EquipmentCount, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]EquipmentCount), args.Error(1)
}

func (m *MockStore) DailySessions(ctx context.Context, f events.Filter, limit int) ([]DailyScans, error) {
	args := m.Called(ctx, f, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DailyScans), args.Error(1)
}

var fixedNow = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

func newTestService(store Store) *Service {
	engine := NewEngine(store, EngineConfig{
		Concurrency:  2,
		TimelineDays: 30,
		Clock:        timeframe.FixedTimeProvider{At: fixedNow},
	})
	return NewService(access.SuperAdminGate(), engine)
}

var (
	admin  = &access.Identity{UserID: 1, Email: "owner@example.com", Role: access.RoleSuperAdmin}
	member = &access.Identity{UserID: 2, Email: "member@example.com", Role: access.RoleMember}
)

func TestServiceRejectsBeforeQuerying(t *testing.T) {
	tests := []struct {
		name    string
		caller  *access.Identity
		query   Query
		wantErr error
	}{
		{name: "anonymous", caller: nil, wantErr: access.ErrUnauthenticated},
		{name: "member", caller: member, wantErr: access.ErrForbidden},
		{name: "member with bad dates", caller: member, query: Query{StartDate: "yesterday"}, wantErr: access.ErrForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockStore)
			svc := newTestService(store)

			_, err := svc.Summary(context.Background(), tc.caller, tc.query)
			assert.ErrorIs(t, err, tc.wantErr)
			_, err = svc.ScanReport(context.Background(), tc.caller, tc.query)
			assert.ErrorIs(t, err, tc.wantErr)
			_, err = svc.Activity(context.Background(), tc.caller, tc.query)
			assert.ErrorIs(t, err, tc.wantErr)

			store.AssertNotCalled(t, "CountPartition", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, store.Calls)
		})
	}
}

func TestServiceValidatesQuery(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		field string
	}{
		{name: "unparseable start", query: Query{StartDate: "01/02/2026"}, field: "date range"},
		{name: "reversed range", query: Query{StartDate: "2026-03-10", EndDate: "2026-03-01"}, field: "date range"},
		{name: "unknown kind", query: Query{Kind: "purchase"}, field: "kind"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockStore)
			_, err := newTestService(store).Summary(context.Background(), admin, tc.query)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
			assert.Empty(t, store.Calls)
		})
	}
}

func TestServiceSummaryWithEmptyStore(t *testing.T) {
	store := new(MockStore)
	store.On("CountPartition", mock.Anything, mock.Anything, mock.Anything).Return(PartitionCount{}, nil)
	store.On("SubjectBreakdown", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	store.On("DailySeries", mock.Anything, mock.Anything, 30).Return(nil, nil)
	store.On("DistinctSessionsBetween", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)

	report, err := newTestService(store).Summary(context.Background(), admin, Query{Path: " /home "})
	require.NoError(t, err)

	assert.Equal(t, Totals{}, report.Summary.Totals)
	assert.Equal(t, []SubjectCount{}, report.Summary.Breakdown.Tagged)
	assert.Equal(t, []SubjectCount{}, report.Summary.Breakdown.Untagged)
	assert.Equal(t, []DailyCount{}, report.Summary.Timeline)
	assert.Equal(t, fixedNow, report.Activity.AsOf)

	store.AssertCalled(t, "CountPartition", mock.Anything, events.Filter{SubjectContains: "/home"}, PartitionTagged)
	store.AssertCalled(t, "CountPartition", mock.Anything, events.Filter{SubjectContains: "/home"}, PartitionUntagged)
	store.AssertCalled(t, "DistinctSessionsBetween", mock.Anything, events.Filter{SubjectContains: "/home"}, fixedNow.AddDate(0, 0, -7), fixedNow)
	store.AssertCalled(t, "DistinctSessionsBetween", mock.Anything, events.Filter{SubjectContains: "/home"}, fixedNow.AddDate(0, 0, -30), fixedNow)
}

func TestServiceStoreFailureReturnsNoPartialResult(t *testing.T) {
	storeErr := errors.New("disk I/O error")

	store := new(MockStore)
	store.On("CountPartition", mock.Anything, mock.Anything, PartitionTagged).Return(PartitionCount{Events: 4, Sessions: 2}, nil)
	store.On("CountPartition", mock.Anything, mock.Anything, PartitionUntagged).Return(PartitionCount{}, storeErr)
	store.On("SubjectBreakdown", mock.Anything, mock.Anything, mock.Anything).Return([]SubjectCount{}, nil)
	store.On("DailySeries", mock.Anything, mock.Anything, mock.Anything).Return([]DailyCount{}, nil)
	store.On("DistinctSessionsBetween", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)

	report, err := newTestService(store).Summary(context.Background(), admin, Query{})
	assert.Nil(t, report)
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "untagged_count")
}

func TestScanReportForcesScanKind(t *testing.T) {
	scans := events.Filter{Kind: events.KindQRScan}

	store := new(MockStore)
	store.On("CountPartition", mock.Anything, scans, PartitionAll).Return(PartitionCount{Events: 0, Sessions: 0}, nil)
	store.On("TopExercises", mock.Anything, scans, 10).Return([]ExerciseCount{}, nil)
	store.On("EquipmentBreakdown", mock.Anything, scans).Return([]EquipmentCount{}, nil)
	store.On("DailySessions", mock.Anything, scans, 30).Return([]DailyScans{}, nil)
	store.On("DistinctSessionsBetween", mock.Anything, scans, mock.Anything, mock.Anything).Return(int64(0), nil)

	report, err := newTestService(store).ScanReport(context.Background(), admin, Query{Kind: "page_visit"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.ScansPerScanner)
	store.AssertExpectations(t)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, ratio(5, 0))
	assert.Equal(t, 2.5, ratio(5, 2))
}
