package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCreateCopiesWorkbook(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "kasboek.xlsx")
	if err := os.WriteFile(src, []byte("workbook-bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	backupDir := filepath.Join(dir, "backups")

	svc := New(func() string { return src }, func() string { return backupDir })
	svc.now = func() time.Time { return time.Date(2026, 1, 3, 14, 30, 5, 0, time.UTC) }

	dst, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(dst) != "kasboek_backup_20260103_143005.xlsx" {
		t.Fatalf("backup name = %s", filepath.Base(dst))
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "workbook-bytes" {
		t.Fatalf("backup content mismatch: %q, %v", b, err)
	}

	names, err := svc.List()
	if err != nil || len(names) != 1 {
		t.Fatalf("list = %v, %v", names, err)
	}
}

func TestCreateMissingWorkbookFails(t *testing.T) {
	dir := t.TempDir()
	svc := New(
		func() string { return filepath.Join(dir, "nope.xlsx") },
		func() string { return filepath.Join(dir, "backups") },
	)
	if _, err := svc.Create(context.Background()); err == nil {
		t.Fatalf("expected error for missing workbook")
	}
}

func TestListEmptyDirectory(t *testing.T) {
	svc := New(func() string { return "" }, func() string { return filepath.Join(t.TempDir(), "none") })
	names, err := svc.List()
	if err != nil || names != nil {
		t.Fatalf("expected empty list, got %v, %v", names, err)
	}
}
