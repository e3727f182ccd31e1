package pg

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsHaveGooseMarkers(t *testing.T) {
	entries, err := fs.ReadDir(embedMigrations, migrationsDir)
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one embedded migration")
	}

	for _, entry := range entries {
		body, err := fs.ReadFile(embedMigrations, migrationsDir+"/"+entry.Name())
		if err != nil {
			t.Fatalf("failed to read %s: %v", entry.Name(), err)
		}
		text := string(body)
		if !strings.Contains(text, "-- +goose Up") || !strings.Contains(text, "-- +goose Down") {
			t.Errorf("%s is missing goose up/down markers", entry.Name())
		}
	}
}

func TestInitialMigrationCreatesTables(t *testing.T) {
	body, err := fs.ReadFile(embedMigrations, migrationsDir+"/00001_init.sql")
	if err != nil {
		t.Fatalf("failed to read initial migration: %v", err)
	}

	for _, table := range []string{"users", "conversations", "messages", "custom_instructions", "request_logs"} {
		if !strings.Contains(string(body), "CREATE TABLE "+table+" (") {
			t.Errorf("expected initial migration to create %s", table)
		}
	}
}

func TestQuerySourcesMatchGeneratedCode(t *testing.T) {
	sources, err := filepath.Glob("queries/*.sql")
	if err != nil {
		t.Fatalf("failed to list query sources: %v", err)
	}
	if len(sources) == 0 {
		t.Fatal("expected query sources")
	}

	for _, source := range sources {
		name := filepath.Base(source)
		generated, err := os.ReadFile(filepath.Join("sqlc", strings.TrimSuffix(name, ".sql")+".sql.go"))
		if err != nil {
			t.Errorf("no generated code for %s: %v", name, err)
			continue
		}
		if !strings.Contains(string(generated), "// source: "+name) {
			t.Errorf("generated code for %s does not name its source", name)
		}

		body, err := os.ReadFile(source)
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		for _, line := range strings.Split(string(body), "\n") {
			if strings.HasPrefix(line, "-- name: ") && !strings.Contains(string(generated), line) {
				t.Errorf("%s: query %q has no generated counterpart", name, line)
			}
		}
	}
}
