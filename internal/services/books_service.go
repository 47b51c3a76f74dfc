package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/books"
)

// BooksService is the thin CRUD façade the HTTP layer and bulk importer
// go through. It writes to the store and fans change events out; it
// performs no authorization, which is the caller's responsibility.
type BooksService struct {
	store  books.Store
	events ChangePublisher
}

func NewBooksService(store books.Store, events ChangePublisher) *BooksService {
	return &BooksService{store: store, events: events}
}

// Store exposes the underlying store for read paths.
func (s *BooksService) Store() books.Store { return s.store }

// Create inserts one record and returns its generated id.
func (s *BooksService) Create(ctx context.Context, collection string, r books.Record) (string, error) {
	id, err := s.store.Create(ctx, collection, r)
	if err != nil {
		return "", fmt.Errorf("create %s record: %w", collection, err)
	}
	s.publish(ctx, books.Change{Collection: collection, ID: id, Kind: books.OpCreate})
	return id, nil
}

// Update merges fields into an existing record.
func (s *BooksService) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	s.publish(ctx, books.Change{Collection: collection, ID: id, Kind: books.OpUpdate})
	return nil
}

// Delete removes one record. There is no cascade: related records keep
// their denormalized name references.
func (s *BooksService) Delete(ctx context.Context, collection, id string) error {
	if err := s.store.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	s.publish(ctx, books.Change{Collection: collection, ID: id, Kind: books.OpDelete})
	return nil
}

func (s *BooksService) publish(ctx context.Context, c books.Change) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRecordChange(ctx, c); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record change",
			"collection", c.Collection, "id", c.ID, "error", err)
	}
}

// Close releases the store.
func (s *BooksService) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
