package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// EventSubscriber receives dispatched domain events.
type EventSubscriber interface {
	Name() string
	Handles(t models.DomainEventType) bool
	Deliver(ctx context.Context, e *models.DomainEvent) error
}

// ---------------------------------------------------------------------------
// log
// ---------------------------------------------------------------------------

type LogSubscriber struct{}

func (LogSubscriber) Name() string                        { return "log" }
func (LogSubscriber) Handles(models.DomainEventType) bool { return true }

func (LogSubscriber) Deliver(_ context.Context, e *models.DomainEvent) error {
	fields := logrus.Fields{
		"event_id": e.ID,
		"unit_id":  e.UnitID,
	}
	if e.SaleID != nil {
		fields["sale_id"] = *e.SaleID
	}
	for k, v := range e.Payload {
		fields[k] = v
	}
	utils.Logger.WithFields(fields).Infof("Domain event %s", e.Type)
	return nil
}

// ---------------------------------------------------------------------------
// letter desk (SendGrid)
// ---------------------------------------------------------------------------

// EmailSender is satisfied by *sendgrid.Client.
type EmailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

var letterDeskEvents = []models.DomainEventType{
	models.EventUnitOfferIssued,
	models.EventUnitAllocated,
	models.EventUnitAllocationRevoked,
	models.EventUnitOfferExpired,
	models.EventCommissionClawbackRequired,
}

// LetterDeskNotifier emails the letter desk so offer, allocation and
// revocation letters get produced.
type LetterDeskNotifier struct {
	client      EmailSender
	orgName     string
	fromEmail   string
	deskEmail   string
	sandboxMode bool
}

func NewLetterDeskNotifier(client EmailSender, orgName, fromEmail, deskEmail string, sandbox bool) *LetterDeskNotifier {
	return &LetterDeskNotifier{
		client:      client,
		orgName:     orgName,
		fromEmail:   fromEmail,
		deskEmail:   deskEmail,
		sandboxMode: sandbox,
	}
}

func (n *LetterDeskNotifier) Name() string { return "letter-desk-email" }

func (n *LetterDeskNotifier) Handles(t models.DomainEventType) bool {
	return slices.Contains(letterDeskEvents, t)
}

func (n *LetterDeskNotifier) Deliver(_ context.Context, e *models.DomainEvent) error {
	subject, plain := describeEvent(e)
	html := "<p>" + strings.ReplaceAll(plain, "\n", "<br>") + "</p>"

	from := mail.NewEmail(n.orgName+" Sales Engine", n.fromEmail)
	to := mail.NewEmail("Letter Desk", n.deskEmail)
	msg := mail.NewSingleEmail(from, subject, to, plain, html)
	msg.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{
			Enable: utils.Ptr(false),
		},
	}
	if n.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}

	resp, err := n.client.Send(msg)
	if err != nil {
		return fmt.Errorf("%w: sendgrid: %v", utils.ErrExternalServiceFailure, err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d", utils.ErrExternalServiceFailure, resp.StatusCode)
	}
	return nil
}

// ---------------------------------------------------------------------------
// sales desk (Twilio)
// ---------------------------------------------------------------------------

// SMSSender is satisfied by twilio.RestClient.Api.
type SMSSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

var salesDeskEvents = []models.DomainEventType{
	models.EventUnitAllocationRevoked,
	models.EventUnitOfferExpired,
	models.EventUnitSold,
	models.EventCommissionClawbackRequired,
}

// SalesDeskNotifier texts the sales desk about events that need a human
// follow-up.
type SalesDeskNotifier struct {
	client    SMSSender
	fromPhone string
	deskPhone string
}

func NewSalesDeskNotifier(client SMSSender, fromPhone, deskPhone string) *SalesDeskNotifier {
	return &SalesDeskNotifier{client: client, fromPhone: fromPhone, deskPhone: deskPhone}
}

func (n *SalesDeskNotifier) Name() string { return "sales-desk-sms" }

func (n *SalesDeskNotifier) Handles(t models.DomainEventType) bool {
	return slices.Contains(salesDeskEvents, t)
}

func (n *SalesDeskNotifier) Deliver(_ context.Context, e *models.DomainEvent) error {
	subject, plain := describeEvent(e)
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.deskPhone)
	params.SetFrom(n.fromPhone)
	params.SetBody(subject + " :: " + strings.ReplaceAll(plain, "\n", " "))
	if _, err := n.client.CreateMessage(params); err != nil {
		return fmt.Errorf("%w: twilio: %v", utils.ErrExternalServiceFailure, err)
	}
	return nil
}

// describeEvent renders a short subject and a plain-text body.
func describeEvent(e *models.DomainEvent) (string, string) {
	var subject string
	switch e.Type {
	case models.EventUnitOfferIssued:
		subject = "Offer letter required"
	case models.EventUnitAllocated:
		subject = "Allocation letter required"
	case models.EventUnitAllocationRevoked:
		subject = "Allocation revoked"
	case models.EventUnitOfferExpired:
		subject = "Offer expired"
	case models.EventUnitSold:
		subject = "Unit fully paid"
	case models.EventCommissionClawbackRequired:
		subject = "Commission clawback requested"
	default:
		subject = string(e.Type)
	}
	if label := e.Payload["plot_label"]; label != "" {
		subject += ": plot " + label
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\nUnit: %s\n", e.Type, e.UnitID)
	if e.SaleID != nil {
		fmt.Fprintf(&b, "Sale: %s\n", *e.SaleID)
	}
	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, e.Payload[k])
	}
	fmt.Fprintf(&b, "At: %s", e.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	return subject, b.String()
}
