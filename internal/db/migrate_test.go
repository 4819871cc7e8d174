package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsOrdersAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":    {Data: []byte("SELECT 10;")},
		"m/002_second.sql":   {Data: []byte("SELECT 2;")},
		"m/001_first.sql":    {Data: []byte("SELECT 1;")},
		"m/readme.md":        {Data: []byte("ignore")},
		"m/draft_x.sql":      {Data: []byte("ignore")},
		"m/nounderscore.sql": {Data: []byte("ignore")},
	}

	got, err := loadMigrations(fsys, "m")
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(got))
	}
	for i, v := range want {
		if got[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, got[i].Version)
		}
	}
}

func TestEmbeddedSchemaHasScheduledSlotIndex(t *testing.T) {
	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("expected schema migration 1, got %+v", migrations)
	}
	if !strings.Contains(migrations[0].SQL, "appointments_scheduled_slot") {
		t.Error("schema is missing the scheduled slot unique index")
	}
}
