package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kasboek/internal/core"
	"kasboek/internal/journal"
	"kasboek/internal/ledger/excel"
	"kasboek/internal/recommend"
)

type transactionView struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Direction   string `json:"direction"`
	Amount      string `json:"amount"`
	Account     string `json:"account,omitempty"`
	Tag         string `json:"tag"`
	Balance     string `json:"balance,omitempty"`
}

func toView(t core.Transaction) transactionView {
	date := ""
	if !t.Date.IsZero() {
		date = t.Date.String()
	}
	desc := t.Description
	if desc == "" {
		desc = t.Remarks
	}
	return transactionView{
		Date:        date,
		Description: desc,
		Direction:   string(t.Direction),
		Amount:      fmt.Sprintf("%.2f", t.Amount.Euros()),
		Account:     t.Account,
		Tag:         t.Tag,
		Balance:     t.BalanceAfter,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	// Balance and recent listing hit the workbook independently.
	var (
		balance core.Money
		recent  []core.Transaction
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		b, err := s.store.Balance(gctx)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		balance = b
		return nil
	})
	g.Go(func() error {
		items, err := s.store.Recent(gctx, recentLimit)
		if err != nil {
			return fmt.Errorf("list recent transactions: %w", err)
		}
		recent = items
		return nil
	})
	if err := g.Wait(); err != nil {
		// Render the form anyway; the dashboard shows a zero state.
		slog.ErrorContext(r.Context(), "Dashboard read error", "error", err)
	}

	views := make([]transactionView, 0, len(recent))
	for _, t := range recent {
		views = append(views, toView(t))
	}

	now := time.Now()
	data := struct {
		Tags        []string
		Balance     string
		Recent      []transactionView
		Today       string
		CurrentDate string
		User        string
		WorkbookSet bool
	}{
		Tags:        s.cfg.Tags(),
		Balance:     core.FormatEuros(balance.Cents),
		Recent:      views,
		Today:       now.Format("2006-01-02"),
		CurrentDate: now.Format("02-01-2006"),
		User:        currentUser(),
		WorkbookSet: strings.TrimSpace(s.cfg.WorkbookPath()) != "",
	}
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Ongeldig formulier")
		return
	}

	date, err := core.ParseDate(r.Form.Get("date"))
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Ongeldige datum")
		return
	}
	desc := sanitizeInput(r.Form.Get("description"))
	if desc == "" {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Mededeling is verplicht")
		return
	}
	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Ongeldig bedrag")
		return
	}

	t := core.Transaction{
		Date:           date,
		Description:    desc,
		Account:        sanitizeInput(r.Form.Get("account")),
		CounterAccount: sanitizeInput(r.Form.Get("counter_account")),
		Code:           sanitizeInput(r.Form.Get("code")),
		Direction:      core.Direction(strings.TrimSpace(r.Form.Get("direction"))),
		Amount:         core.Money{Cents: cents},
		MutationKind:   sanitizeInput(r.Form.Get("mutation_kind")),
		Remarks:        sanitizeInput(r.Form.Get("remarks")),
		BalanceAfter:   sanitizeInput(r.Form.Get("balance_after")),
		Tag:            sanitizeInput(r.Form.Get("tag")),
	}
	if err := t.Validate(); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Ongeldige invoer: "+err.Error())
		return
	}

	ref, err := s.store.Append(r.Context(), t)
	if err != nil {
		if errors.Is(err, excel.ErrNoWorkbook) {
			s.respondError(w, r, http.StatusBadRequest,
				"Geen Excel bestand ingesteld. Ga naar Instellingen en selecteer een bestand.")
			return
		}
		slog.ErrorContext(r.Context(), "Transaction append error", "error", err, "description", t.Description)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij opslaan van de transactie")
		return
	}

	s.recordEvent(r, journal.KindTransactionAdded, fmt.Sprintf(
		"datum=%s omschrijving=%s bedrag=%s richting=%s tag=%s ref=%s",
		t.Date, t.Description, core.FormatEuros(t.Amount.Cents), t.Direction, t.Tag, ref))

	balance, err := s.store.Balance(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Balance after append error", "error", err)
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Transactie succesvol opgeslagen",
		"row_ref":   ref,
		"new_total": fmt.Sprintf("%.2f", balance.Euros()),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.store.Balance(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Balance read error", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij berekenen totaal")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"total":     fmt.Sprintf("%.2f", balance.Euros()),
		"formatted": core.FormatEuros(balance.Cents),
	})
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := recentLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Recent transactions error", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij ophalen transacties")
		return
	}
	s.respondTransactions(w, items)
}

func (s *Server) handleAllTransactions(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.All(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "All transactions error", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij ophalen transacties")
		return
	}
	s.respondTransactions(w, items)
}

func (s *Server) respondTransactions(w http.ResponseWriter, items []core.Transaction) {
	views := make([]transactionView, 0, len(items))
	for _, t := range items {
		views = append(views, toView(t))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"transactions": views})
}

// handleRecommendCategory suggests tags for a description being typed.
// The response is always 200 with a recommendations array: an unreadable
// reference set degrades to an empty list, the same as no matches.
func (s *Server) handleRecommendCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if s.recommender == nil || json.NewDecoder(r.Body).Decode(&req) != nil {
		s.respondJSON(w, http.StatusOK, map[string]any{"recommendations": []recommend.Recommendation{}})
		return
	}

	recs, err := s.recommender.Recommend(r.Context(), req.Description)
	if err != nil {
		if errors.Is(err, recommend.ErrDatasetUnavailable) {
			slog.WarnContext(r.Context(), "Category reference set unavailable", "error", err)
		} else {
			slog.ErrorContext(r.Context(), "Category recommendation error", "error", err)
		}
		recs = nil
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{"events": []journal.Event{}})
		return
	}
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Events read error", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij ophalen gebeurtenissen")
		return
	}
	if events == nil {
		events = []journal.Event{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.backups == nil {
		s.respondError(w, r, http.StatusInternalServerError, "Backup niet beschikbaar")
		return
	}
	path, err := s.backups.Create(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Backup error", "error", err)
		s.respondError(w, r, http.StatusInternalServerError, "Fout bij maken backup")
		return
	}
	s.recordEvent(r, journal.KindBackupCreated, path)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Backup succesvol gemaakt",
		"backup":  path,
	})
}

// handleQuit logs the session end and triggers the same graceful stop as
// SIGINT, after the response has been written.
func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Duration string `json:"duration"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Duration == "" {
		req.Duration = "onbekend"
	}

	s.recordEvent(r, journal.KindSessionStopped, "sessieduur="+req.Duration)
	slog.InfoContext(r.Context(), "Shutdown requested via web interface",
		"user", currentUser(), "duration", req.Duration)

	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Applicatie sluit af"})

	if s.requestShutdown != nil {
		go func() {
			time.Sleep(500 * time.Millisecond) // let the response flush
			s.requestShutdown()
		}()
	}
}

func (s *Server) recordEvent(r *http.Request, kind, detail string) {
	if s.events == nil {
		return
	}
	// Journal failures never fail the originating request.
	_ = s.events.Record(r.Context(), journal.Event{
		Kind:       kind,
		Actor:      currentUser(),
		RemoteAddr: clientIP(r),
		Detail:     detail,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Response encode error", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respondJSON(w, status, map[string]any{"success": false, "message": message})
}

// sanitizeInput trims whitespace and strips control characters except
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
