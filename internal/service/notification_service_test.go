package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmflow/crm-automation/internal/service"
)

type publishedAction struct {
	kind    string
	key     string
	payload any
}

type memoryOutbox struct {
	published []publishedAction
	err       error
}

func (o *memoryOutbox) PublishAction(_ context.Context, kind, key string, payload any) error {
	if o.err != nil {
		return o.err
	}
	o.published = append(o.published, publishedAction{kind: kind, key: key, payload: payload})
	return nil
}

func TestNotificationServicePublishesToOutbox(t *testing.T) {
	outbox := &memoryOutbox{}
	svc := service.NewNotificationService(outbox, nil)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, service.Notification{UserID: "u-1", Message: "hello"}))
	id, err := svc.CreateTask(ctx, service.TaskRequest{Title: "call back", EntityID: "contact-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, svc.UpdateRelatedDeals(ctx, service.DealUpdate{ContactID: "contact-1"}))

	require.Len(t, outbox.published, 3)
	assert.Equal(t, "notification", outbox.published[0].kind)
	assert.Equal(t, "u-1", outbox.published[0].key)
	assert.Equal(t, "task", outbox.published[1].kind)
	assert.Equal(t, "contact-1", outbox.published[1].key)
	assert.Equal(t, "deal_update", outbox.published[2].kind)
}

func TestNotificationServiceDropsNotificationWithoutRecipient(t *testing.T) {
	outbox := &memoryOutbox{}
	svc := service.NewNotificationService(outbox, nil)

	require.NoError(t, svc.Send(context.Background(), service.Notification{Message: "to nobody"}))
	assert.Empty(t, outbox.published)
}

func TestNotificationServiceSurfacesOutboxErrors(t *testing.T) {
	svc := service.NewNotificationService(&memoryOutbox{err: errors.New("broker down")}, nil)

	_, err := svc.ScheduleMeeting(context.Background(), service.MeetingRequest{Title: "demo"})
	assert.ErrorContains(t, err, "publish meeting")

	err = svc.UpdateRelatedDeals(context.Background(), service.DealUpdate{})
	assert.ErrorContains(t, err, "contact id is required")
}

func TestNotificationServiceWithoutOutbox(t *testing.T) {
	svc := service.NewNotificationService(nil, nil)

	assert.NoError(t, svc.SendEmail(context.Background(), service.Email{To: "a@b.c"}))
}
