package leads

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("NewChanneledLogger: %v", err)
	}
	return logger
}

func TestCreateFromTargetInput(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger(t))

	n, err := s.CreateFromTargetInput("c1", "alice, bob ,, charlie,")
	if err != nil {
		t.Fatalf("CreateFromTargetInput: %v", err)
	}
	if n != 3 {
		t.Errorf("wrote %d usernames, want 3", n)
	}
	if !s.Exists("c1") {
		t.Error("Exists is false after creation")
	}

	rows, err := s.Load("c1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"alice", "bob", "charlie"}
	if len(rows) != len(want) {
		t.Fatalf("loaded %d rows, want %d", len(rows), len(want))
	}
	for i, row := range rows {
		if row.Username != want[i] {
			t.Errorf("row %d = %q, want %q", i, row.Username, want[i])
		}
	}
}

func TestCreateFromTargetInputEmpty(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger(t))
	n, err := s.CreateFromTargetInput("c1", " , ,")
	if err != nil {
		t.Fatalf("CreateFromTargetInput: %v", err)
	}
	if n != 0 {
		t.Errorf("wrote %d usernames from blank input", n)
	}
	if s.Exists("c1") {
		t.Error("blank input created a file")
	}
}

func TestSaveAndLoadJSONL(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger(t))

	rows := []ImportedLead{
		{Username: "alice", FirstName: "Alice", FullName: "Alice Ames"},
		{Username: "bob"},
	}
	if err := s.SaveJSONL("c1", rows); err != nil {
		t.Fatalf("SaveJSONL: %v", err)
	}

	loaded, err := s.Load("c1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d rows, want 2", len(loaded))
	}
	if loaded[0].FirstName != "Alice" || loaded[0].FullName != "Alice Ames" {
		t.Errorf("enrichment fields lost: %+v", loaded[0])
	}
}

func TestJSONLWinsOverTxt(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger(t))

	if _, err := s.CreateFromTargetInput("c1", "txtuser"); err != nil {
		t.Fatalf("CreateFromTargetInput: %v", err)
	}
	if err := s.SaveJSONL("c1", []ImportedLead{{Username: "jsonluser"}}); err != nil {
		t.Fatalf("SaveJSONL: %v", err)
	}

	rows, err := s.Load("c1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 || rows[0].Username != "jsonluser" {
		t.Errorf("Load = %+v, want the jsonl row", rows)
	}
}

func TestLoadSkipsMalformedAndComments(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, quietLogger(t))

	txt := "# seed list\nalice\n\n  bob  \n"
	if err := os.WriteFile(filepath.Join(dir, "c1.txt"), []byte(txt), 0644); err != nil {
		t.Fatalf("write txt: %v", err)
	}
	rows, err := s.Load("c1")
	if err != nil {
		t.Fatalf("Load txt: %v", err)
	}
	if len(rows) != 2 || rows[0].Username != "alice" || rows[1].Username != "bob" {
		t.Errorf("txt rows = %+v", rows)
	}

	jsonl := `{"username":"carol"}` + "\nnot json\n" + `{"username":""}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "c2.jsonl"), []byte(jsonl), 0644); err != nil {
		t.Fatalf("write jsonl: %v", err)
	}
	rows, err = s.Load("c2")
	if err != nil {
		t.Fatalf("Load jsonl: %v", err)
	}
	if len(rows) != 1 || rows[0].Username != "carol" {
		t.Errorf("jsonl rows = %+v", rows)
	}
}

func TestLoadMissingCampaign(t *testing.T) {
	s := NewStore(t.TempDir(), quietLogger(t))
	rows, err := s.Load("nope")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("missing campaign returned %d rows", len(rows))
	}
}
