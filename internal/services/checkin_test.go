package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"tripwatch-bot/internal/models"
)

func newTestCheckin(store *memStore, notifier *fakeNotifier) *CheckinService {
	sessions := NewSessionStore(time.Hour)
	svc := NewCheckinService(sessions, store, store, store, NewDispatcher(notifier), models.DayModeTrip)
	svc.now = func() time.Time { return time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestCheckin_OKConfirmsWithoutEscalation(t *testing.T) {
	store := newMemStore()
	e := seedEmployee(store)
	notifier := newFakeNotifier()
	svc := newTestCheckin(store, notifier)

	reply, err := svc.HandleLocation(context.Background(), e.ChatID, 35.68, 139.76)
	if err != nil {
		t.Fatal(err)
	}
	if len(reply.Choices) != 3 {
		t.Fatalf("expected 3 status choices, got %v", reply.Choices)
	}

	if _, err := svc.HandleStatus(context.Background(), e.ChatID, "ok"); err != nil {
		t.Fatal(err)
	}

	checkins := store.checkins[e.ID]
	if len(checkins) != 1 {
		t.Fatalf("expected 1 checkin, got %d", len(checkins))
	}
	if checkins[0].Latitude != 35.68 || checkins[0].Status != models.StatusOK {
		t.Errorf("unexpected checkin %+v", checkins[0])
	}
	if len(notifier.personal[e.ChatID]) != 1 {
		t.Errorf("expected personal confirmation, got %v", notifier.personal[e.ChatID])
	}
	if len(notifier.admin) != 0 {
		t.Errorf("ok status must not page the admin, got %v", notifier.admin)
	}
}

func TestCheckin_SafetyIssueEscalatesDistinctly(t *testing.T) {
	store := newMemStore()
	e := seedEmployee(store)
	notifier := newFakeNotifier()
	svc := newTestCheckin(store, notifier)

	if _, err := svc.HandleLocation(context.Background(), e.ChatID, 35.68, 139.76); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.HandleStatus(context.Background(), e.ChatID, "safety-issue"); err != nil {
		t.Fatal(err)
	}

	if len(notifier.admin) != 1 {
		t.Fatalf("expected 1 escalation, got %v", notifier.admin)
	}
	if !strings.Contains(notifier.admin[0], "escalation") || !strings.Contains(notifier.admin[0], "safety-issue") {
		t.Errorf("escalation message missing detail: %q", notifier.admin[0])
	}
	personal := notifier.personal[e.ChatID]
	if len(personal) != 1 || strings.Contains(personal[0], "escalation") {
		t.Errorf("employee should get the ordinary confirmation, got %v", personal)
	}
}

func TestCheckin_UnknownStatusReprompts(t *testing.T) {
	store := newMemStore()
	e := seedEmployee(store)
	svc := newTestCheckin(store, newFakeNotifier())

	if _, err := svc.HandleLocation(context.Background(), e.ChatID, 1, 2); err != nil {
		t.Fatal(err)
	}
	reply, err := svc.HandleStatus(context.Background(), e.ChatID, "fine")
	if err != nil {
		t.Fatal(err)
	}
	if reply == nil || len(reply.Choices) != 3 {
		t.Fatalf("expected re-prompt with choices, got %v", reply)
	}
	if len(store.checkins[e.ID]) != 0 {
		t.Fatal("no checkin may be stored for an invalid status")
	}
}

func TestCheckin_UnregisteredUserIsTold(t *testing.T) {
	store := newMemStore()
	svc := newTestCheckin(store, newFakeNotifier())

	reply, err := svc.HandleLocation(context.Background(), 999, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply.Text, "/register") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
}

func TestCheckin_StatusWithoutLocationIgnored(t *testing.T) {
	store := newMemStore()
	e := seedEmployee(store)
	svc := newTestCheckin(store, newFakeNotifier())

	reply, err := svc.HandleStatus(context.Background(), e.ChatID, "ok")
	if err != nil || reply != nil {
		t.Fatalf("expected nil reply without pending location, got %v, %v", reply, err)
	}
}
