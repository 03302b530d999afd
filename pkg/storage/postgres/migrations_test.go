package postgres

import (
	"testing"
	"testing/fstest"
)

func TestListMigrationsEmbedded(t *testing.T) {
	got, err := listMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no embedded migrations found")
	}
	if got[0].version != 1 || got[0].name != "001_create_statements.sql" {
		t.Errorf("first migration = %+v, want version 1 001_create_statements.sql", got[0])
	}
}

func TestListMigrationsOrderingAndFiltering(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql":    {Data: []byte("SELECT 1")},
		"migrations/002_second.sql":   {Data: []byte("SELECT 1")},
		"migrations/001_first.sql":    {Data: []byte("SELECT 1")},
		"migrations/README.md":        {Data: []byte("docs")},
		"migrations/nounderscore.sql": {Data: []byte("SELECT 1")},
		"migrations/abc_bad.sql":      {Data: []byte("SELECT 1")},
	}

	got, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}

	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %d migrations, want %d: %+v", len(got), len(want), got)
	}
	for i, v := range want {
		if got[i].version != v {
			t.Errorf("migration[%d].version = %d, want %d", i, got[i].version, v)
		}
	}
}
