// Package backup copies the workbook into the backup directory with a
// timestamped name, at startup and on request.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Service copies the current workbook. The locate funcs are late-bound so
// settings changes apply without rebuilding the service.
type Service struct {
	workbookPath func() string
	backupDir    func() string
	now          func() time.Time
}

func New(workbookPath, backupDir func() string) *Service {
	return &Service{
		workbookPath: workbookPath,
		backupDir:    backupDir,
		now:          time.Now,
	}
}

// Create copies the workbook to <backup dir>/<name>_backup_<stamp>.xlsx
// and returns the backup path.
func (s *Service) Create(ctx context.Context) (string, error) {
	src := s.workbookPath()
	if strings.TrimSpace(src) == "" {
		return "", fmt.Errorf("no workbook configured")
	}
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("workbook not found: %s", src)
	}
	dir := s.backupDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	stamp := s.now().Format("20060102_150405")
	name := strings.TrimSuffix(filepath.Base(src), ".xlsx")
	dst := filepath.Join(dir, fmt.Sprintf("%s_backup_%s.xlsx", name, stamp))

	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("copy workbook: %w", err)
	}
	slog.InfoContext(ctx, "Backup created", "source", src, "backup", dst)
	return dst, nil
}

// CreateAtStartup backs up the workbook if one exists; a missing workbook
// is not an error at startup since the user may still need to configure
// one via the settings page.
func (s *Service) CreateAtStartup(ctx context.Context) {
	src := s.workbookPath()
	if strings.TrimSpace(src) == "" {
		return
	}
	if _, err := os.Stat(src); err != nil {
		slog.WarnContext(ctx, "Skipping startup backup, workbook not found", "path", src)
		return
	}
	if _, err := s.Create(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup backup failed", "error", err)
	}
}

// List returns existing backup files, newest first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xlsx") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
