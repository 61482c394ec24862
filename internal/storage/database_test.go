package storage

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "valid path", path: filepath.Join(t.TempDir(), "catalog.db")},
		{name: "missing directory", path: "/nonexistent/dir/catalog.db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.path)
			if tt.wantErr {
				if err == nil {
					_ = db.Close()
					t.Fatal("New() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			defer func() {
				_ = db.Close()
			}()

			if db.Stats().MaxOpenConnections != 25 {
				t.Errorf("MaxOpenConnections = %v, want 25", db.Stats().MaxOpenConnections)
			}

			pragmas := map[string]string{
				"foreign_keys": "1",
				"journal_mode": "wal",
				"busy_timeout": "5000",
			}
			for pragma, want := range pragmas {
				var got string
				if err := db.QueryRow("PRAGMA " + pragma).Scan(&got); err != nil {
					t.Fatalf("PRAGMA %s: %v", pragma, err)
				}
				if got != want {
					t.Errorf("PRAGMA %s = %q, want %q", pragma, got, want)
				}
			}
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	for _, table := range []string{"documents", "chunks"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	var index string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_chunks_document'").Scan(&index); err != nil {
		t.Errorf("chunk index not created: %v", err)
	}
}

func TestMigrate_Schema(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		table string
		want  []string
	}{
		{"documents", []string{"source_path TEXT NOT NULL UNIQUE", "hash TEXT NOT NULL", "chunk_count INTEGER"}},
		{"chunks", []string{"section_path TEXT NOT NULL DEFAULT '[]'", "token_estimate INTEGER", "ON DELETE CASCADE"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			var schema string
			if err := db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name=?", tt.table).Scan(&schema); err != nil {
				t.Fatalf("failed to read schema: %v", err)
			}
			for _, fragment := range tt.want {
				if !strings.Contains(schema, fragment) {
					t.Errorf("schema of %s lacks %q:\n%s", tt.table, fragment, schema)
				}
			}
		})
	}
}

func TestMigrate_CascadeDeletesChunks(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Exec(`INSERT INTO documents (id, title, source_path, hash) VALUES ('d1', '14971', 'iso/14971.pdf', 'h')`); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	for i, id := range []string{"c1", "c2"} {
		if _, err := db.Exec(`INSERT INTO chunks (id, document_id, position, text) VALUES (?, 'd1', ?, 'text')`, id, i); err != nil {
			t.Fatalf("insert chunk: %v", err)
		}
	}

	if _, err := db.Exec(`DELETE FROM documents WHERE id = 'd1'`); err != nil {
		t.Fatalf("delete document: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if n != 0 {
		t.Errorf("%d chunks left after deleting their document", n)
	}
}

func TestMigrate_RejectsOrphanChunks(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO chunks (id, document_id, position, text) VALUES ('c1', 'missing', 0, 'text')`)
	if err == nil {
		t.Error("insert of a chunk without a document should fail")
	}
}
