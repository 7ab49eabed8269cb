package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeEmailSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeEmailSender) Send(m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

type fakeSMSSender struct {
	sent []*twilioApi.CreateMessageParams
	err  error
}

func (f *fakeSMSSender) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.sent = append(f.sent, p)
	return &twilioApi.ApiV2010Message{}, f.err
}

func sampleEvent(t models.DomainEventType) *models.DomainEvent {
	saleID := uuid.New()
	return &models.DomainEvent{
		ID:        uuid.New(),
		Type:      t,
		UnitID:    uuid.New(),
		SaleID:    &saleID,
		Timestamp: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		Payload:   map[string]string{"plot_label": "A-1", "client_id": "c-1"},
	}
}

func TestLetterDeskNotifier(t *testing.T) {
	sender := &fakeEmailSender{status: 202}
	n := NewLetterDeskNotifier(sender, "Propty", "noreply@propty.ng", "letters@propty.ng", true)

	assert.True(t, n.Handles(models.EventUnitAllocated))
	assert.False(t, n.Handles(models.EventInstallmentPaid))

	ev := sampleEvent(models.EventUnitAllocated)
	require.NoError(t, n.Deliver(context.Background(), ev))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Allocation letter required: plot A-1", msg.Subject)
	require.NotNil(t, msg.MailSettings)
	assert.True(t, *msg.MailSettings.SandboxMode.Enable)
	assert.Contains(t, msg.Content[0].Value, "client_id: c-1")
	assert.Contains(t, msg.Content[0].Value, ev.SaleID.String())

	sender.status = 500
	requireKind(t, n.Deliver(context.Background(), ev), utils.ErrExternalServiceFailure)

	sender.err = errors.New("dial tcp: timeout")
	requireKind(t, n.Deliver(context.Background(), ev), utils.ErrExternalServiceFailure)
}

func TestSalesDeskNotifier(t *testing.T) {
	sender := &fakeSMSSender{}
	n := NewSalesDeskNotifier(sender, "+15550001111", "+2348000000000")

	assert.True(t, n.Handles(models.EventUnitOfferExpired))
	assert.False(t, n.Handles(models.EventUnitAllocated))

	require.NoError(t, n.Deliver(context.Background(), sampleEvent(models.EventUnitOfferExpired)))
	require.Len(t, sender.sent, 1)
	p := sender.sent[0]
	assert.Equal(t, "+2348000000000", *p.To)
	assert.Equal(t, "+15550001111", *p.From)
	assert.Contains(t, *p.Body, "Offer expired: plot A-1")

	sender.err = errors.New("21211 invalid number")
	requireKind(t, n.Deliver(context.Background(), sampleEvent(models.EventUnitSold)), utils.ErrExternalServiceFailure)
}
