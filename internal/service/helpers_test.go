package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/repository"
	"github.com/crmflow/crm-automation/internal/service"
)

var (
	errAuditStore    = errors.New("audit store unavailable")
	errTimelineStore = errors.New("timeline store unavailable")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeCRM records every collaborator call made by the action executor.
type fakeCRM struct {
	mu            sync.Mutex
	err           error
	calls         int
	notifications []service.Notification
	tasks         []service.TaskRequest
	emails        []service.Email
	meetings      []service.MeetingRequest
	assignments   []service.AssignmentNotice
	deals         []service.DealUpdate
}

func (f *fakeCRM) record(fn func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	fn()
	return nil
}

func (f *fakeCRM) Send(_ context.Context, n service.Notification) error {
	return f.record(func() { f.notifications = append(f.notifications, n) })
}

func (f *fakeCRM) CreateTask(_ context.Context, t service.TaskRequest) (string, error) {
	if err := f.record(func() { f.tasks = append(f.tasks, t) }); err != nil {
		return "", err
	}
	return "task-1", nil
}

func (f *fakeCRM) SendEmail(_ context.Context, e service.Email) error {
	return f.record(func() { f.emails = append(f.emails, e) })
}

func (f *fakeCRM) ScheduleMeeting(_ context.Context, m service.MeetingRequest) (string, error) {
	if err := f.record(func() { f.meetings = append(f.meetings, m) }); err != nil {
		return "", err
	}
	return "meeting-1", nil
}

func (f *fakeCRM) NotifyAssignment(_ context.Context, n service.AssignmentNotice) error {
	return f.record(func() { f.assignments = append(f.assignments, n) })
}

func (f *fakeCRM) UpdateRelatedDeals(_ context.Context, d service.DealUpdate) error {
	return f.record(func() { f.deals = append(f.deals, d) })
}

func (f *fakeCRM) Notifications() []service.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.Notification(nil), f.notifications...)
}

func (f *fakeCRM) Assignments() []service.AssignmentNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.AssignmentNotice(nil), f.assignments...)
}

func (f *fakeCRM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCRM) dependencies() service.ExecutorDependencies {
	return service.ExecutorDependencies{
		Notifications: f,
		Tasks:         f,
		Email:         f,
		Meetings:      f,
		Assignments:   f,
		Deals:         f,
	}
}

type failingAuditRepo struct{}

func (failingAuditRepo) Create(context.Context, *domain.AuditLog) error {
	return errAuditStore
}

func (failingAuditRepo) ListByTicket(context.Context, string, int, int) ([]domain.AuditLog, error) {
	return nil, nil
}

type failingTimelineRepo struct{}

func (failingTimelineRepo) Append(context.Context, *domain.TimelineEntry) error {
	return errTimelineStore
}

func (failingTimelineRepo) ListByEntity(context.Context, string, int, int) ([]domain.TimelineEntry, error) {
	return nil, nil
}

// racingTickets runs beforeUpdate ahead of the first Update call, standing in
// for a writer that commits between the caller's read and write.
type racingTickets struct {
	repository.TicketRepository
	mu           sync.Mutex
	beforeUpdate func()
	updates      int
}

func (r *racingTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	hook := r.beforeUpdate
	r.beforeUpdate = nil
	r.updates++
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.TicketRepository.Update(ctx, ticket)
}

func (r *racingTickets) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// conflictingTickets rejects every Update as a concurrent modification.
type conflictingTickets struct {
	repository.TicketRepository
	mu      sync.Mutex
	updates int
}

func (c *conflictingTickets) Update(context.Context, *domain.Ticket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates++
	return domain.ErrTicketConflict
}

func ptr[T any](v T) *T { return &v }
