package notification

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestDispatcher(email *MockEmailSender, sms *MockSMSSender) *Dispatcher {
	return NewDispatcher(email, sms, NewTemplateEngine(), zerolog.Nop())
}

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()

	subject, body, err := e.Render(TemplateAppointmentConfirmed, map[string]string{
		"patient_name": "Ana Souza",
		"doctor_name":  "Dr. Lima",
		"date":         "2025-06-10",
		"time":         "14:30",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(subject, "2025-06-10") {
		t.Errorf("expected date in subject, got %q", subject)
	}
	if !strings.Contains(body, "Ana Souza") || !strings.Contains(body, "Dr. Lima") {
		t.Errorf("expected names substituted in body, got %q", body)
	}
}

func TestTemplateEngine_RenderUnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateEngine_MissingKeysLeftAsIs(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render(TemplateAppointmentCancelled, map[string]string{"date": "2025-06-10"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(body, "{{reason}}") {
		t.Errorf("expected unresolved placeholder kept, got %q", body)
	}
}

func TestDispatch_SendsEmail(t *testing.T) {
	email := &MockEmailSender{}
	d := newTestDispatcher(email, &MockSMSSender{})

	d.Dispatch(context.Background(), "ana@example.com", TemplateAppointmentConfirmed,
		map[string]string{"patient_name": "Ana"}, nil)

	calls := email.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "ana@example.com" {
		t.Errorf("unexpected recipient %s", calls[0].To)
	}

	stats := d.Stats(context.Background())
	if stats["sent"] != 1 {
		t.Errorf("expected 1 sent, got %v", stats)
	}
}

func TestDispatch_FailureIsSwallowedAndRecorded(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "smtp down"}
	d := newTestDispatcher(email, &MockSMSSender{})

	// Must not panic or propagate the error.
	d.Dispatch(context.Background(), "ana@example.com", TemplateAppointmentCancelled,
		map[string]string{"date": "2025-06-10"}, nil)

	stats := d.Stats(context.Background())
	if stats["failed"] != 1 {
		t.Errorf("expected 1 failed, got %v", stats)
	}

	list, err := d.ListByRecipient(context.Background(), "ana@example.com", 10)
	if err != nil {
		t.Fatalf("ListByRecipient: %v", err)
	}
	if len(list) != 1 || list[0].Error != "smtp down" {
		t.Errorf("expected recorded failure, got %+v", list)
	}
}

func TestRetry(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "smtp down"}
	d := newTestDispatcher(email, &MockSMSSender{})

	d.Dispatch(context.Background(), "ana@example.com", TemplateNoShowRecorded,
		map[string]string{"date": "2025-06-10"}, nil)

	list, _ := d.ListByRecipient(context.Background(), "ana@example.com", 1)
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	id := list[0].ID

	// Retrying a sent notification is rejected; a failed one succeeds once
	// the transport recovers.
	email.ShouldFail = false
	if err := d.Retry(context.Background(), id); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	n, err := d.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n.Status != "sent" || n.Error != "" {
		t.Errorf("expected sent status after retry, got %s (%s)", n.Status, n.Error)
	}

	if err := d.Retry(context.Background(), id); err == nil {
		t.Error("expected error retrying a sent notification")
	}
}
