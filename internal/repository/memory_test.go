package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/repository"
)

func TestMemoryTicketUpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewMemoryStore().Tickets()
	require.NoError(t, tickets.Create(ctx, &domain.Ticket{ID: "t-1", Subject: "Printer jammed"}))

	first, err := tickets.GetByID(ctx, "t-1")
	require.NoError(t, err)
	second, err := tickets.GetByID(ctx, "t-1")
	require.NoError(t, err)

	first.AssignedTo = "agent-a"
	require.NoError(t, tickets.Update(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	second.Subject = "Printer still jammed"
	assert.ErrorIs(t, tickets.Update(ctx, second), domain.ErrTicketConflict)

	stored, err := tickets.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-a", stored.AssignedTo)
	assert.Equal(t, "Printer jammed", stored.Subject)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMemoryTicketUpdateMissing(t *testing.T) {
	tickets := repository.NewMemoryStore().Tickets()

	err := tickets.Update(context.Background(), &domain.Ticket{ID: "nope"})
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}
