package database

import (
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{name: "postgres scheme", dsn: "postgres://u:p@localhost:5432/fitdesk?sslmode=disable", want: "pgx5://u:p@localhost:5432/fitdesk?sslmode=disable"},
		{name: "postgresql scheme", dsn: "postgresql://localhost/fitdesk", want: "pgx5://localhost/fitdesk"},
		{name: "already pgx5", dsn: "pgx5://localhost/fitdesk", want: "pgx5://localhost/fitdesk"},
		{name: "keyword dsn", dsn: "host=localhost password=secret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MigrationURL(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationURL_RedactsPassword(t *testing.T) {
	_, err := MigrationURL("host=localhost password=secret")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); strings.Contains(got, "secret") {
		t.Errorf("error leaks password: %s", got)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("iofs.New: %v", err)
	}
	defer src.Close()

	first, err := src.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if first != 1 {
		t.Errorf("first version = %d, want 1", first)
	}

	up, _, err := src.ReadUp(first)
	if err != nil {
		t.Fatalf("ReadUp: %v", err)
	}
	up.Close()

	down, _, err := src.ReadDown(first)
	if err != nil {
		t.Fatalf("ReadDown: %v", err)
	}
	down.Close()
}
