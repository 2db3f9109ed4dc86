//go:build integration
// +build integration

package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/liamcoop/csvetl/catalog"
	"github.com/liamcoop/csvetl/rules"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container and returns a connection
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "csvetl_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/csvetl_test?sslmode=disable", host, port.Port())

	// The log line appears once before the final restart, so retry the ping
	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	m, err := migrate.New("file://../migrations", connStr)
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	m.Close()

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func ordersDocument(name string) *catalog.Document {
	return &catalog.Document{
		ID:   uuid.New().String(),
		Name: name,
		Rules: []rules.Definition{
			{Target: "OrderId", Type: rules.Calculation, InputType: rules.Integer, OutputType: rules.Integer, Source: "Order Number"},
			{Target: "Total", Type: rules.Calculation, InputType: rules.Decimal, OutputType: rules.Decimal,
				Source: []string{"Count", "Price"}, Operations: []string{"s[0] * s[1]"}},
			{Target: "Unit", Type: rules.Static, InputType: rules.String, OutputType: rules.String, Source: 5},
		},
		Active: true,
	}
}

func TestPostgresStore_BasicCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := catalog.NewPostgresStore(db)
	doc := ordersDocument("orders")

	if err := store.Add(doc); err != nil {
		t.Fatalf("Failed to add rule set: %v", err)
	}

	retrieved, err := store.Get("orders")
	if err != nil {
		t.Fatalf("Failed to get rule set: %v", err)
	}
	if retrieved.ID != doc.ID {
		t.Errorf("Expected ID %s, got %s", doc.ID, retrieved.ID)
	}
	if len(retrieved.Rules) != 3 {
		t.Fatalf("Expected 3 rules, got %d", len(retrieved.Rules))
	}
	if got := retrieved.Rules[1].Operations; len(got) != 1 || got[0] != "s[0] * s[1]" {
		t.Errorf("Expected operations to round-trip, got %v", got)
	}
	if retrieved.Rules[2].Source != 5 {
		t.Errorf("Expected static source 5 (int), got %v (%T)", retrieved.Rules[2].Source, retrieved.Rules[2].Source)
	}

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rule sets: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("Expected 1 active rule set, got %d", len(active))
	}

	doc.Active = false
	if err := store.Update(doc); err != nil {
		t.Fatalf("Failed to update rule set: %v", err)
	}
	active, err = store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rule sets: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected 0 active rule sets, got %d", len(active))
	}

	if err := store.Delete("orders"); err != nil {
		t.Fatalf("Failed to delete rule set: %v", err)
	}
	if _, err := store.Get("orders"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresStore_Duplicate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := catalog.NewPostgresStore(db)
	if err := store.Add(ordersDocument("orders")); err != nil {
		t.Fatalf("Failed to add rule set: %v", err)
	}

	if err := store.Add(ordersDocument("orders")); !errors.Is(err, catalog.ErrExists) {
		t.Errorf("Expected ErrExists, got %v", err)
	}
}

func TestPostgresStore_Missing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := catalog.NewPostgresStore(db)
	if err := store.Update(ordersDocument("missing")); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on update, got %v", err)
	}
	if err := store.Delete("missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on delete, got %v", err)
	}
}

func TestCatalog_WithDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	cat, err := catalog.New(catalog.NewPostgresStore(db))
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	if err := cat.Add(ordersDocument("orders")); err != nil {
		t.Fatalf("Failed to add rule set: %v", err)
	}

	// A second catalog over the same database compiles what the first stored
	reopened, err := catalog.New(catalog.NewPostgresStore(db))
	if err != nil {
		t.Fatalf("Failed to reopen catalog: %v", err)
	}
	rs, err := reopened.RuleSet("orders")
	if err != nil {
		t.Fatalf("Failed to get rule set: %v", err)
	}

	results := rs.Execute(rules.Row{"Order Number": "1000", "Count": "2", "Price": "1,000.25"})
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[1].Value != 2000.5 {
		t.Errorf("Expected Total 2000.5, got %v", results[1].Value)
	}
	if results[2].Value != "5" {
		t.Errorf("Expected Unit \"5\", got %v", results[2].Value)
	}
}
