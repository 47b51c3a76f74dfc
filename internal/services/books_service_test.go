package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tally/internal/books"
	"tally/internal/books/memory"
)

// capturingPublisher records every change it is handed.
type capturingPublisher struct {
	mu      sync.Mutex
	changes []books.Change
	fail    bool
}

func (p *capturingPublisher) PublishRecordChange(_ context.Context, c books.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.changes = append(p.changes, c)
	return nil
}

func (p *capturingPublisher) published() []books.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]books.Change(nil), p.changes...)
}

func TestBooksServicePublishesChanges(t *testing.T) {
	ctx := context.Background()
	pub := &capturingPublisher{}
	svc := NewBooksService(memory.New(), pub)

	id, err := svc.Create(ctx, books.Clients, books.Record{"name": "Acme"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Update(ctx, books.Clients, id, map[string]any{"status": "Completed"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := svc.Delete(ctx, books.Clients, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got := pub.published()
	wantKinds := []books.OpKind{books.OpCreate, books.OpUpdate, books.OpDelete}
	if len(got) != len(wantKinds) {
		t.Fatalf("published %d changes, want %d", len(got), len(wantKinds))
	}
	for i, want := range wantKinds {
		if got[i].Kind != want || got[i].ID != id || got[i].Collection != books.Clients {
			t.Errorf("change[%d] = %+v, want kind %s for %s/%s", i, got[i], want, books.Clients, id)
		}
	}
}

func TestBooksServiceToleratesPublisherFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewBooksService(store, &capturingPublisher{fail: true})

	id, err := svc.Create(ctx, books.Clients, books.Record{"name": "Acme"})
	if err != nil {
		t.Fatalf("Create() must succeed despite publisher failure, got %v", err)
	}
	if _, err := store.Get(ctx, books.Clients, id); err != nil {
		t.Errorf("record missing after create: %v", err)
	}
}
