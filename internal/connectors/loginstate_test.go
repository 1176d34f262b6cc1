package connectors

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/remotebrowser"
)

func TestLoginTaskMap_ResolveIsOneShot(t *testing.T) {
	m := NewLoginTaskMap()
	m.Start("ctx-1", &LoginTask{Deadline: time.Now().Add(time.Minute)})

	task, ok := m.Resolve("ctx-1")
	if !ok || task == nil {
		t.Fatal("expected first resolve to find the task")
	}

	_, ok = m.Resolve("ctx-1")
	if ok {
		t.Fatal("expected second resolve to report not-found")
	}
}

func TestConfirmOrExpire_RaceBetweenConfirmAndTimerIsIdempotent(t *testing.T) {
	fake := remotebrowser.NewFake()
	ctx := context.Background()
	sess, _ := fake.SessionCreate(ctx, remotebrowser.SessionCreateOptions{})

	tasks := NewLoginTaskMap()
	tasks.Start("shortvideo-context:api-tenant1", &LoginTask{
		Session:  sess,
		Deadline: time.Now().Add(-time.Second), // already expired
	})

	// Simulate the confirm endpoint and the background timer racing.
	errConfirm := ConfirmOrExpire(ctx, fake, tasks, "shortvideo-context:api-tenant1")
	errTimer := ConfirmOrExpire(ctx, fake, tasks, "shortvideo-context:api-tenant1")

	if errConfirm != nil || errTimer != nil {
		t.Fatalf("expected both racers to succeed without error, got confirm=%v timer=%v", errConfirm, errTimer)
	}
	if fake.DeletedCount != 1 {
		t.Fatalf("expected exactly one delete to reach the provider, got %d", fake.DeletedCount)
	}
}
