// Package notification provides the outbound Email/SMS notification system:
// template rendering, in-memory storage, and the fire-and-forget dispatcher
// the scheduling engine calls after a committed state change.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Notification Types
// ---------------------------------------------------------------------------

// Type represents the channel used to deliver a notification.
type Type string

const (
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
)

// ---------------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------------

// Notification represents a single outbound notification.
type Notification struct {
	ID           string            `json:"id"`
	Type         Type              `json:"type"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ---------------------------------------------------------------------------
// Sender Interfaces
// ---------------------------------------------------------------------------

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Type    Type   `json:"type"`
}

// Appointment lifecycle template ids the scheduling engine dispatches.
const (
	TemplateAppointmentRequested   = "appointment-requested"
	TemplateAppointmentConfirmed   = "appointment-confirmed"
	TemplateAppointmentCancelled   = "appointment-cancelled"
	TemplateAppointmentCompleted   = "appointment-completed"
	TemplateAppointmentRescheduled = "appointment-rescheduled"
	TemplateNoShowRecorded         = "no-show-recorded"
	TemplateAccountBlocked         = "account-blocked"
)

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateAppointmentRequested,
			Name:    "Appointment Requested",
			Subject: "New appointment request from {{patient_name}}",
			Body:    "{{patient_name}} requested an appointment on {{date}} at {{time}}. Please confirm or decline.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAppointmentConfirmed,
			Name:    "Appointment Confirmed",
			Subject: "Your appointment on {{date}} is confirmed",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{time}} has been confirmed.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAppointmentCancelled,
			Name:    "Appointment Cancelled",
			Subject: "Appointment on {{date}} cancelled",
			Body:    "The appointment on {{date}} at {{time}} has been cancelled. Reason: {{reason}}",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAppointmentCompleted,
			Name:    "Appointment Completed",
			Subject: "Visit summary for {{date}}",
			Body:    "Dear {{patient_name}}, thank you for your visit with {{doctor_name}} on {{date}}.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAppointmentRescheduled,
			Name:    "Appointment Rescheduled",
			Subject: "Your appointment has been moved to {{date}}",
			Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} is now on {{date}} at {{time}}.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateNoShowRecorded,
			Name:    "Missed Appointment",
			Subject: "You missed your appointment on {{date}}",
			Body:    "Dear {{patient_name}}, our records show you missed your appointment on {{date}} at {{time}}.",
			Type:    TypeEmail,
		},
		{
			ID:      TemplateAccountBlocked,
			Name:    "Booking Suspended",
			Subject: "Your booking privileges are suspended",
			Body:    "Dear {{patient_name}}, after {{count}} consecutive missed appointments your online booking has been suspended. Please contact the clinic.",
			Type:    TypeEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

func (e *TemplateEngine) typeOf(templateID string) Type {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Type
	}
	return TypeEmail
}

// ---------------------------------------------------------------------------
// Mock Senders (test doubles)
// ---------------------------------------------------------------------------

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SendSMS records the call and optionally returns an error.
func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Log Senders
// ---------------------------------------------------------------------------

// LogEmailSender writes outbound email to the log instead of a provider.
// Used until a real SMTP or transactional email integration is configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email notification")
	return nil
}

// LogSMSSender writes outbound SMS to the log instead of a provider.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().Str("to", to).Str("body", body).Msg("sms notification")
	return nil
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Dispatcher orchestrates rendering, sending, storage, and retrieval of
// notifications. Dispatch is best-effort: the scheduling engine's state
// change has already committed by the time a notification goes out, so send
// failures are recorded and logged but never surfaced to the caller.
type Dispatcher struct {
	emailSender   EmailSender
	smsSender     SMSSender
	templates     *TemplateEngine
	logger        zerolog.Logger
	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(email EmailSender, sms SMSSender, tpl *TemplateEngine, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		emailSender:   email,
		smsSender:     sms,
		templates:     tpl,
		logger:        logger,
		notifications: make(map[string]*Notification),
	}
}

// Dispatch renders the template and sends the resulting notification to the
// recipient. Errors are logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient, templateID string, data map[string]string, metadata map[string]string) {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		d.logger.Error().Err(err).Str("template", templateID).Msg("notification render failed")
		return
	}

	n := &Notification{
		Type:         d.templates.typeOf(templateID),
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
		Metadata:     metadata,
	}

	if err := d.send(ctx, n); err != nil {
		d.logger.Error().Err(err).
			Str("template", templateID).
			Str("recipient", recipient).
			Str("notification_id", n.ID).
			Msg("notification send failed")
	}
}

// send delivers the notification through the appropriate channel, assigns an
// ID and timestamps, and persists the result in-memory.
func (d *Dispatcher) send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = "pending"

	var sendErr error
	switch n.Type {
	case TypeEmail:
		sendErr = d.emailSender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case TypeSMS:
		sendErr = d.smsSender.SendSMS(ctx, n.Recipient, n.Body)
	default:
		sendErr = fmt.Errorf("unsupported notification type: %s", n.Type)
	}

	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	d.mu.Lock()
	d.notifications[n.ID] = n
	d.mu.Unlock()

	return sendErr
}

// Get retrieves a notification by ID.
func (d *Dispatcher) Get(_ context.Context, id string) (*Notification, error) {
	d.mu.RLock()
	n, ok := d.notifications[id]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByRecipient returns notifications for a given recipient, up to limit.
func (d *Dispatcher) ListByRecipient(_ context.Context, recipient string, limit int) ([]*Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*Notification
	for _, n := range d.notifications {
		if n.Recipient == recipient {
			result = append(result, n)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// Retry re-sends a failed notification. Returns an error if the notification
// is not in "failed" status.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	d.mu.RLock()
	n, ok := d.notifications[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != "failed" {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}

	var sendErr error
	switch n.Type {
	case TypeEmail:
		sendErr = d.emailSender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case TypeSMS:
		sendErr = d.smsSender.SendSMS(ctx, n.Recipient, n.Body)
	default:
		sendErr = fmt.Errorf("unsupported notification type: %s", n.Type)
	}

	d.mu.Lock()
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	d.mu.Unlock()

	return sendErr
}

// Stats returns counts of notifications grouped by status.
func (d *Dispatcher) Stats(_ context.Context) map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range d.notifications {
		stats[n.Status]++
	}
	return stats
}
