package app

import (
	"context"
	"errors"
	"testing"

	"mfgrecords/internal/domain"
)

func TestFlashService_ConsumedOnce(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewFlashService(store, nil)
	ctx := context.Background()
	sess := &domain.Session{ID: "s1"}

	if err := svc.Set(ctx, sess, domain.FlashSuccess, "Product saved"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	stored, _ := store.Get(ctx, "s1")
	if stored.Flash == nil || stored.Flash.Text != "Product saved" {
		t.Fatal("flash not persisted on Set")
	}

	msg := svc.Get(ctx, sess)
	if msg == nil || msg.Kind != domain.FlashSuccess || msg.Text != "Product saved" {
		t.Fatalf("Get = %+v", msg)
	}
	stored, _ = store.Get(ctx, "s1")
	if stored.Flash != nil {
		t.Error("cleared flash not persisted before Get returned")
	}
	if again := svc.Get(ctx, sess); again != nil {
		t.Errorf("second Get = %+v, want nil", again)
	}
}

func TestFlashService_SetOverwrites(t *testing.T) {
	svc := NewFlashService(newFakeSessionStore(), nil)
	ctx := context.Background()
	sess := &domain.Session{ID: "s1"}

	_ = svc.Set(ctx, sess, domain.FlashInfo, "first")
	_ = svc.Set(ctx, sess, domain.FlashDanger, "second")

	msg := svc.Get(ctx, sess)
	if msg.Kind != domain.FlashDanger || msg.Text != "second" {
		t.Errorf("Get = %+v", msg)
	}
}

func TestFlashService_UnknownKindIsInfo(t *testing.T) {
	svc := NewFlashService(newFakeSessionStore(), nil)
	sess := &domain.Session{ID: "s1"}
	_ = svc.Set(context.Background(), sess, domain.FlashKind("error"), "x")
	if sess.Flash.Kind != domain.FlashInfo {
		t.Errorf("kind = %q, want info", sess.Flash.Kind)
	}
}

func TestFlashService_GetWithPersistFailureStillClears(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewFlashService(store, nil)
	ctx := context.Background()
	sess := &domain.Session{ID: "s1"}
	_ = svc.Set(ctx, sess, domain.FlashWarning, "careful")

	store.saveErr = errors.New("db down")
	if msg := svc.Get(ctx, sess); msg == nil {
		t.Fatal("message lost")
	}
	if sess.Flash != nil {
		t.Error("in-memory session still holds the message")
	}
}

func TestFlashService_NilSession(t *testing.T) {
	svc := NewFlashService(newFakeSessionStore(), nil)
	if svc.Get(context.Background(), nil) != nil {
		t.Error("expected nil")
	}
}
