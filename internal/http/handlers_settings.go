package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"kasboek/internal/config"
	"kasboek/internal/journal"
	"kasboek/internal/ledger/excel"
)

const maxUploadBytes = 16 << 20

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var backups []string
	if s.backups != nil {
		list, err := s.backups.List()
		if err != nil {
			slog.ErrorContext(r.Context(), "Backup listing error", "error", err)
		}
		backups = list
	}
	data := struct {
		Settings  config.Settings
		Backups   []string
		LogLevels []string
		User      string
	}{
		Settings:  s.cfg.Snapshot(),
		Backups:   backups,
		LogLevels: config.ValidLogLevels,
		User:      currentUser(),
	}
	if err := s.templates.ExecuteTemplate(w, "settings.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Settings template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleSetWorkbookFile renames the workbook within its current directory.
// The .xlsx extension is appended when missing, matching the file that
// Append would create.
func (s *Server) handleSetWorkbookFile(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	name := sanitizeInput(r.FormValue("filename"))
	if name == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Bestandsnaam is verplicht")
		return
	}
	if name != filepath.Base(name) {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Bestandsnaam mag geen pad bevatten")
		return
	}
	if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name += ".xlsx"
	}

	old := s.cfg.WorkbookPath()
	dir := "."
	if old != "" {
		dir = filepath.Dir(old)
	}
	next := filepath.Join(dir, name)

	if old != "" && old != next {
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, next); err != nil {
				slog.ErrorContext(r.Context(), "Workbook rename error", "from", old, "to", next, "error", err)
				s.respondError(w, r, http.StatusInternalServerError, "Fout bij hernoemen van het bestand")
				return
			}
		}
	}
	s.applyWorkbookPath(w, r, old, next)
}

// handleSetWorkbookPath switches to an existing workbook elsewhere on
// disk. The file must exist and carry the expected header row.
func (s *Server) handleSetWorkbookPath(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	path := sanitizeInput(r.FormValue("path"))
	if path == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Pad is verplicht")
		return
	}
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Pad moet naar een .xlsx bestand wijzen")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Bestand niet gevonden: "+path)
		return
	}
	_, sheet := s.cfg.Workbook()
	if err := excel.ValidateFileHeaders(path, sheet); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Ongeldig werkblad: "+err.Error())
		return
	}
	s.applyWorkbookPath(w, r, s.cfg.WorkbookPath(), path)
}

// handleWorkbookUpload accepts a workbook over multipart upload, stores it
// next to the current workbook and switches to it after header validation.
func (s *Server) handleWorkbookUpload(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Ongeldige upload")
		return
	}
	file, header, err := r.FormFile("workbook")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Geen bestand ontvangen")
		return
	}
	defer file.Close()

	name := filepath.Base(sanitizeInput(header.Filename))
	if name == "" || name == "." || !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Alleen .xlsx bestanden worden geaccepteerd")
		return
	}

	dir := "."
	if old := s.cfg.WorkbookPath(); old != "" {
		dir = filepath.Dir(old)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van het bestand")
		return
	}
	dst := filepath.Join(dir, name)

	out, err := os.Create(dst)
	if err != nil {
		slog.ErrorContext(r.Context(), "Upload create error", "path", dst, "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van het bestand")
		return
	}
	if _, err := io.Copy(out, io.LimitReader(file, maxUploadBytes)); err != nil {
		out.Close()
		os.Remove(dst)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van het bestand")
		return
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van het bestand")
		return
	}

	_, sheet := s.cfg.Workbook()
	if err := excel.ValidateFileHeaders(dst, sheet); err != nil {
		os.Remove(dst)
		s.respondError(w, r, http.StatusUnprocessableEntity, "Ongeldig werkblad: "+err.Error())
		return
	}
	s.applyWorkbookPath(w, r, s.cfg.WorkbookPath(), dst)
}

func (s *Server) applyWorkbookPath(w http.ResponseWriter, r *http.Request, old, next string) {
	if err := s.cfg.SetWorkbookPath(next); err != nil {
		slog.ErrorContext(r.Context(), "Settings save error", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van de instellingen")
		return
	}
	s.recordEvent(r, journal.KindSettingChanged, fmt.Sprintf("workbook_path: %q -> %q", old, next))
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Excel bestand bijgewerkt",
		"workbook_path": next,
	})
}

func (s *Server) handleSetBackupDirectory(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	dir := sanitizeInput(r.FormValue("directory"))
	if dir == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Map is verplicht")
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Map kan niet worden aangemaakt: "+err.Error())
		return
	}
	old := s.cfg.BackupDirectory()
	if err := s.cfg.SetBackupDirectory(dir); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van de instellingen")
		return
	}
	s.recordEvent(r, journal.KindSettingChanged, fmt.Sprintf("backup_directory: %q -> %q", old, dir))
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Backup map bijgewerkt"})
}

func (s *Server) handleSetLogDirectory(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	dir := sanitizeInput(r.FormValue("directory"))
	if dir == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Map is verplicht")
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Map kan niet worden aangemaakt: "+err.Error())
		return
	}
	old := s.cfg.LogDirectory()
	if err := s.cfg.SetLogDirectory(dir); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van de instellingen")
		return
	}
	// The open log file keeps its location; the new directory applies on
	// the next start.
	s.recordEvent(r, journal.KindSettingChanged, fmt.Sprintf("log_directory: %q -> %q", old, dir))
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Log map bijgewerkt, actief na herstart",
	})
}

func (s *Server) handleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	level := strings.ToUpper(sanitizeInput(r.FormValue("level")))
	old := s.cfg.LogLevel()
	if err := s.cfg.SetLogLevel(level); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity,
			fmt.Sprintf("Ongeldig log niveau '%s', kies uit %v", level, config.ValidLogLevels))
		return
	}
	if s.logger != nil {
		s.logger.SetLevel(level)
	}
	s.recordEvent(r, journal.KindSettingChanged, fmt.Sprintf("log_level: %s -> %s", old, level))
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Log niveau bijgewerkt"})
}

func (s *Server) handleSetSheetName(w http.ResponseWriter, r *http.Request) {
	if !s.requirePost(w, r) {
		return
	}
	name := sanitizeInput(r.FormValue("sheet_name"))
	if name == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Werkbladnaam is verplicht")
		return
	}
	// With a configured workbook the sheet must exist and carry the
	// expected headers before the switch is committed.
	if path := s.cfg.WorkbookPath(); path != "" && s.headers != nil {
		if _, err := os.Stat(path); err == nil {
			if err := s.headers.ValidateHeaders(r.Context(), name); err != nil {
				s.respondError(w, r, http.StatusUnprocessableEntity, "Ongeldig werkblad: "+err.Error())
				return
			}
		}
	}
	_, old := s.cfg.Workbook()
	if err := s.cfg.SetSheetName(name); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van de instellingen")
		return
	}
	s.recordEvent(r, journal.KindSettingChanged, fmt.Sprintf("sheet_name: %q -> %q", old, name))
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Werkbladnaam bijgewerkt"})
}

func (s *Server) requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}
