package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/repository"
	"github.com/crmflow/crm-automation/internal/service"
)

func TestRecordAuditFillsDefaults(t *testing.T) {
	clock := newTestClock()
	store := repository.NewMemoryStore()
	recorder := service.NewRecorder(service.RecorderDependencies{
		AuditRepo:    store.AuditLogs(),
		TimelineRepo: store.Timeline(),
		Now:          clock.Now,
	})

	entry := &domain.AuditLog{TicketID: "t-1", UserID: "u-1", Action: domain.AuditActionUpdate}
	require.NoError(t, recorder.RecordAudit(context.Background(), entry))

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, clock.Now(), entry.Timestamp)
	require.NotNil(t, entry.Changes)
	assert.NotNil(t, entry.Changes.Before)
	assert.NotNil(t, entry.Changes.After)
}

func TestHistoryIsNewestFirstWithStableTies(t *testing.T) {
	clock := newTestClock()
	store := repository.NewMemoryStore()
	recorder := service.NewRecorder(service.RecorderDependencies{
		AuditRepo:    store.AuditLogs(),
		TimelineRepo: store.Timeline(),
		Now:          clock.Now,
	})
	ctx := context.Background()
	base := clock.Now()

	for _, e := range []domain.TimelineEntry{
		{ID: "a", EntityID: "deal-1", Timestamp: base},
		{ID: "b", EntityID: "deal-1", Timestamp: base.Add(time.Minute)},
		{ID: "c", EntityID: "deal-1", Timestamp: base.Add(time.Minute)},
		{ID: "other", EntityID: "deal-2", Timestamp: base.Add(time.Hour)},
		{ID: "d", EntityID: "deal-1", Timestamp: base.Add(-time.Minute)},
	} {
		entry := e
		require.NoError(t, recorder.RecordTimeline(ctx, &entry))
	}

	history, err := recorder.History(ctx, "deal-1", 0, 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(history))
	for _, entry := range history {
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids)

	paged, err := recorder.History(ctx, "deal-1", 2, 1)
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, "b", paged[0].ID)
	assert.Equal(t, "a", paged[1].ID)
}

func TestAuditTrailUnknownTicketIsEmpty(t *testing.T) {
	store := repository.NewMemoryStore()
	recorder := service.NewRecorder(service.RecorderDependencies{
		AuditRepo:    store.AuditLogs(),
		TimelineRepo: store.Timeline(),
	})

	trail, err := recorder.AuditTrail(context.Background(), "missing", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, trail)
}
