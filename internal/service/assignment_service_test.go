package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/repository"
	"github.com/crmflow/crm-automation/internal/service"
	apperrors "github.com/crmflow/crm-automation/pkg/util/errorutil"
)

func newAssignment(t *testing.T, pool ...string) (*service.AssignmentService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo:  store.AssignmentRules(),
		AgentPool: pool,
	}), store
}

func TestResolveRotatesThroughPool(t *testing.T) {
	svc, _ := newAssignment(t, "X", "Y", "Z")
	ctx := context.Background()

	var got []string
	for i := 0; i < 4; i++ {
		assignee, err := svc.Resolve(ctx, &domain.Ticket{Category: "general", Priority: domain.TicketPriorityLow})
		require.NoError(t, err)
		got = append(got, assignee)
	}

	assert.Equal(t, []string{"X", "Y", "Z", "X"}, got)
}

func TestResolvePrefersFirstMatchingRule(t *testing.T) {
	svc, _ := newAssignment(t, "X", "Y")
	ctx := context.Background()

	_, err := svc.AddRule(ctx, domain.AssignmentRule{Category: "billing", Priority: domain.TicketPriorityHigh, AssigneeID: "billing-lead"})
	require.NoError(t, err)
	_, err = svc.AddRule(ctx, domain.AssignmentRule{Category: "billing", Priority: domain.TicketPriorityHigh, AssigneeID: "billing-backup"})
	require.NoError(t, err)

	assignee, err := svc.Resolve(ctx, &domain.Ticket{Category: "billing", Priority: domain.TicketPriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, "billing-lead", assignee)

	assignee, err = svc.Resolve(ctx, &domain.Ticket{Category: "billing", Priority: domain.TicketPriorityLow})
	require.NoError(t, err)
	assert.Equal(t, "X", assignee, "rule matches need both category and priority")

	assignee, err = svc.Resolve(ctx, &domain.Ticket{Category: "billing", Priority: domain.TicketPriorityLow})
	require.NoError(t, err)
	assert.Equal(t, "Y", assignee, "rule hits do not consume the rotation")
}

func TestResolveWithEmptyPool(t *testing.T) {
	svc, _ := newAssignment(t)

	_, err := svc.Resolve(context.Background(), &domain.Ticket{Category: "general", Priority: domain.TicketPriorityLow})
	assert.ErrorIs(t, err, domain.ErrEmptyAgentPool)
}

func TestResolveConcurrentCallsSpreadEvenly(t *testing.T) {
	svc, _ := newAssignment(t, "X", "Y", "Z")
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[string]int{}
	)
	for i := 0; i < 300; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assignee, err := svc.Resolve(ctx, &domain.Ticket{})
			assert.NoError(t, err)
			mu.Lock()
			counts[assignee]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"X": 100, "Y": 100, "Z": 100}, counts)
}

func TestAddRuleValidates(t *testing.T) {
	svc, _ := newAssignment(t, "X")

	_, err := svc.AddRule(context.Background(), domain.AssignmentRule{Priority: "urgent"})
	require.Error(t, err)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	assert.Contains(t, domainErr.Details, "category")
	assert.Contains(t, domainErr.Details, "priority")
	assert.Contains(t, domainErr.Details, "assignee_id")
}

func TestRuleLifecycle(t *testing.T) {
	svc, _ := newAssignment(t, "X")
	ctx := context.Background()

	first, err := svc.AddRule(ctx, domain.AssignmentRule{Category: "a", Priority: domain.TicketPriorityLow, AssigneeID: "u1"})
	require.NoError(t, err)
	second, err := svc.AddRule(ctx, domain.AssignmentRule{Category: "b", Priority: domain.TicketPriorityLow, AssigneeID: "u2"})
	require.NoError(t, err)
	assert.Less(t, first.Position, second.Position)

	require.NoError(t, svc.RemoveRule(ctx, first.ID))
	rules, err := svc.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, second.ID, rules[0].ID)

	err = svc.RemoveRule(ctx, first.ID)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestPoolReturnsCopy(t *testing.T) {
	svc, _ := newAssignment(t, "X", "Y")

	pool := svc.Pool()
	pool[0] = "mutated"

	assert.Equal(t, []string{"X", "Y"}, svc.Pool())
}
