package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"

	"roster-cli/internal/config"
	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/store"
)

type rosterVM struct {
	Collection string
	Sort       order.SortMode
	SortModes  []order.SortMode
	Manual     bool
	Columns    int
	ExpandedID string
	Display    config.DisplayConfig
	Rows       [][]model.Member
	Count      int
}

type homeVM struct {
	Roster      rosterVM
	Now         string
	ReadOnly    bool
	StreamURL   string
	DatastarURL string
}

func (s *Server) rosterVM(col string, mode order.SortMode, items []model.Member, columns int, expandedID string) rosterVM {
	if c, err := store.NormalizeCollection(col); err == nil {
		col = c
	}
	return rosterVM{
		Collection: col,
		Sort:       mode,
		SortModes:  order.SortModes(),
		Manual:     mode == order.SortManual,
		Columns:    columns,
		ExpandedID: expandedID,
		Display:    s.cfgSnapshot().Display,
		Rows:       order.Rows(items, columns, expandedID),
		Count:      len(items),
	}
}

// renderRoster lists the collection and renders the #roster fragment.
func (s *Server) renderRoster(r *http.Request) (string, error) {
	mode, err := s.sortFor(r)
	if err != nil {
		return "", err
	}
	col := s.collectionFor(r)
	items, err := s.svc.List(r.Context(), col, mode)
	if err != nil {
		return "", err
	}
	expanded := strings.TrimSpace(r.URL.Query().Get("expanded"))
	return s.renderTemplate("roster", s.rosterVM(col, mode, items, s.columnsFor(r), expanded))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	mode, err := s.sortFor(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	col := s.collectionFor(r)
	items, err := s.svc.List(r.Context(), col, mode)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	expanded := strings.TrimSpace(r.URL.Query().Get("expanded"))
	vm := homeVM{
		Roster:      s.rosterVM(col, mode, items, s.columnsFor(r), expanded),
		Now:         time.Now().Format(time.RFC3339),
		ReadOnly:    s.cfgSnapshot().ReadOnly,
		StreamURL:   "/stream?" + r.URL.RawQuery,
		DatastarURL: datastarURL,
	}
	s.writeHTMLTemplate(w, "admin.html", vm)
}

// handleStream keeps a Datastar SSE connection open and re-patches #roster after
// every mutation of the collection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	col, err := store.NormalizeCollection(s.collectionFor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sse := datastar.NewSSE(w, r)

	ch, cancel := s.bc.hubFor(col).subscribe()
	defer cancel()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	s.logFor(r).Debug("stream opened", zap.String("collection", col))
	for {
		select {
		case <-sse.Context().Done():
			return
		case <-s.bc.done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			html, err := s.renderRoster(r)
			if err != nil {
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			_ = sse.PatchElements(html, datastar.WithSelector("#roster"), datastar.WithMode(datastar.ElementPatchModeOuter))
		}
	}
}
