package catalog

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/csvetl/rules"
)

func sampleDocument(name string) *Document {
	return &Document{
		ID:   name + "-id",
		Name: name,
		Rules: []rules.Definition{
			{Target: "Unit", Type: rules.Static, InputType: rules.String, OutputType: rules.String, Source: "kg"},
		},
		Active: true,
	}
}

// TestStoreInterface verifies both stores satisfy Store
func TestStoreInterface(t *testing.T) {
	var _ Store = (*InMemoryStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}

// TestInMemoryStoreAdd verifies basic Add and Get
func TestInMemoryStoreAdd(t *testing.T) {
	store := NewInMemoryStore()
	doc := sampleDocument("orders")

	if err := store.Add(doc); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if doc.CreatedAt.IsZero() || !doc.CreatedAt.Equal(doc.UpdatedAt) {
		t.Errorf("Add() should stamp CreatedAt == UpdatedAt, got %v / %v", doc.CreatedAt, doc.UpdatedAt)
	}

	got, err := store.Get("orders")
	if err != nil {
		t.Fatalf("Get() failed after Add(): %v", err)
	}
	if got.ID != doc.ID || got.Name != doc.Name || len(got.Rules) != 1 {
		t.Errorf("Get() = %+v, want %+v", got, doc)
	}
}

// TestInMemoryStoreAddDuplicate verifies duplicate names are rejected
func TestInMemoryStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Add(sampleDocument("orders")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	err := store.Add(sampleDocument("orders"))
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second Add() error = %v, want ErrExists", err)
	}
}

// TestInMemoryStoreGetMissing verifies unknown names return ErrNotFound
func TestInMemoryStoreGetMissing(t *testing.T) {
	store := NewInMemoryStore()

	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := store.Update(sampleDocument("nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := store.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

// TestInMemoryStoreCopies verifies callers cannot mutate stored documents
func TestInMemoryStoreCopies(t *testing.T) {
	store := NewInMemoryStore()
	doc := sampleDocument("orders")
	if err := store.Add(doc); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	doc.Rules[0].Target = "Changed"
	got, _ := store.Get("orders")
	got.Rules[0].Source = "lb"

	again, _ := store.Get("orders")
	if again.Rules[0].Target != "Unit" || again.Rules[0].Source != "kg" {
		t.Errorf("stored document was mutated: %+v", again.Rules[0])
	}
}

// TestInMemoryStoreUpdate verifies Update keeps ID and CreatedAt
func TestInMemoryStoreUpdate(t *testing.T) {
	store := NewInMemoryStore()
	doc := sampleDocument("orders")
	if err := store.Add(doc); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	created := doc.CreatedAt

	time.Sleep(2 * time.Millisecond)
	next := sampleDocument("orders")
	next.ID = "other"
	next.Active = false
	if err := store.Update(next); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, _ := store.Get("orders")
	if got.ID != "orders-id" {
		t.Errorf("ID = %s, want orders-id", got.ID)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed from %v to %v", created, got.CreatedAt)
	}
	if !got.UpdatedAt.After(created) {
		t.Errorf("UpdatedAt %v should be after %v", got.UpdatedAt, created)
	}
	if got.Active {
		t.Error("Active should be false after update")
	}
}

// TestInMemoryStoreListActive verifies only active documents are listed, oldest first
func TestInMemoryStoreListActive(t *testing.T) {
	store := NewInMemoryStore()
	for _, name := range []string{"b", "a", "c"} {
		doc := sampleDocument(name)
		doc.Active = name != "c"
		if err := store.Add(doc); err != nil {
			t.Fatalf("Add(%s) failed: %v", name, err)
		}
		time.Sleep(time.Millisecond)
	}

	docs, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("ListActive() returned %d documents, want 2", len(docs))
	}
	if docs[0].Name != "b" || docs[1].Name != "a" {
		t.Errorf("ListActive() order = [%s %s], want [b a]", docs[0].Name, docs[1].Name)
	}
}

// TestInMemoryStoreDelete verifies deleted documents are gone
func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Add(sampleDocument("orders")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Delete("orders"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get("orders"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

// TestInMemoryStoreConcurrency verifies concurrent adds and reads are safe
func TestInMemoryStoreConcurrency(t *testing.T) {
	store := NewInMemoryStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			if err := store.Add(sampleDocument(name)); err != nil {
				t.Errorf("Add(%s) failed: %v", name, err)
			}
			_, _ = store.ListActive()
		}(i)
	}
	wg.Wait()

	docs, _ := store.ListActive()
	if len(docs) != 20 {
		t.Errorf("ListActive() returned %d documents, want 20", len(docs))
	}
}
