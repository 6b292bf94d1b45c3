package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"monthcal/internal/calendar"
	"monthcal/internal/config"
	appLog "monthcal/internal/log"
	"monthcal/internal/records"
)

// Server serves the laid-out month as JSON and as an HTML page.
// 레이아웃 결과는 calendar.Cache 에 memoize 되며 서버가 그 수명을 소유한다.
type Server struct {
	cfg      *config.Config
	opts     calendar.Options
	provider records.Provider
	cache    *calendar.Cache
	mux      *http.ServeMux

	// now is swapped in tests to pin the default month.
	now func() time.Time
}

// NewServer constructs a new Server. It fails when the config does not
// resolve to valid layout options (an unknown timezone, for instance).
func NewServer(cfg *config.Config, provider records.Provider) (*Server, error) {
	opts, err := cfg.CalendarOptions()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		opts:     opts,
		provider: provider,
		cache:    calendar.NewCache(0),
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="monthcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/calendar", s.handleCalendarJSON)
	s.mux.HandleFunc("/api/groups", s.handleGroups)
	s.mux.HandleFunc("/calendar", s.handleCalendarPage)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.Handle("/", http.RedirectHandler("/calendar", http.StatusFound))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG from cfg.Preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile 가 파일 존재/권한 문제에 대해 적절한 상태코드를 반환해 준다.
	http.ServeFile(w, r, s.cfg.Preview)
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	calendar.ViewModel
	Timezone  string `json:"timezone"`
	WeekStart string `json:"weekStart"`
	Policy    string `json:"linePolicy"`
}

// handleCalendarJSON returns the laid-out month.
//
// GET /api/calendar?month=2024-03&groups=work,family
//   - month:  YYYY-MM (기본: 현재 월, 설정된 타임존 기준)
//   - groups: 표시할 그룹 id 목록. 생략하면 설정의 active 그룹을 사용한다.
func (s *Server) handleCalendarJSON(w http.ResponseWriter, r *http.Request) {
	vm, status, err := s.monthView(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		ViewModel: vm,
		Timezone:  s.opts.Location.String(),
		WeekStart: s.cfg.WeekStart,
		Policy:    s.opts.Policy.String(),
	})
}

// monthView resolves the request into a view model. The returned status is
// only meaningful when err is non-nil.
func (s *Server) monthView(r *http.Request) (calendar.ViewModel, int, error) {
	q := r.URL.Query()
	year, monthIndex, err := records.ParseMonth(q.Get("month"), s.now().In(s.opts.Location))
	if err != nil {
		return calendar.ViewModel{}, http.StatusBadRequest, err
	}

	from, to := records.Window(year, monthIndex, s.opts.WeekStart, s.opts.Location)
	recs, err := s.provider.Records(r.Context(), from, to)
	if err != nil {
		appLog.Error("loading records failed", err, "month", q.Get("month"))
		return calendar.ViewModel{}, http.StatusBadGateway, errors.New("failed to load records")
	}

	recs = s.cfg.WithGroupColors(recs)

	groups := s.cfg.DefaultActiveGroups(recs)
	if q.Has("groups") {
		groups = calendar.NewGroupSet(strings.Split(q.Get("groups"), ",")...)
	}

	vm := s.cache.Build(calendar.Input{
		Records:      recs,
		ActiveGroups: groups,
		Year:         year,
		MonthIndex:   monthIndex,
	}, s.opts)

	if len(vm.Dropped) > 0 {
		appLog.Info("records dropped from layout", "count", len(vm.Dropped), "ids", strings.Join(vm.Dropped, ","))
	}
	appLog.Debug("calendar built", "year", vm.Year, "month_index", vm.MonthIndex, "records", len(recs), "groups", len(groups))
	return vm, http.StatusOK, nil
}

type groupDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

// handleGroups lists configured groups plus the implicit groups of ICS
// sources.
func (s *Server) handleGroups(w http.ResponseWriter, _ *http.Request) {
	groups := s.cfg.AllGroups()
	out := make([]groupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupDTO{ID: g.ID, Name: g.Name, Color: g.Color, Active: g.Active})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
