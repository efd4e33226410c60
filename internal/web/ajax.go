package web

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"roster-cli/internal/model"
	"roster-cli/internal/order"
	"roster-cli/internal/roster"
)

// ajaxRequest is accepted as JSON or as form/query values.
type ajaxRequest struct {
	Action     string `json:"action"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Direction  string `json:"direction"`
	Columns    int    `json:"columns"`
	Index      *int   `json:"index"`
	Persist    bool   `json:"persist"`
	Sort       string `json:"sort"`
}

func parseAjaxRequest(r *http.Request) (ajaxRequest, error) {
	var req ajaxRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, model.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, model.ValidationError{Field: "body", Reason: err.Error()}
		}
		req.Action = r.Form.Get("action")
		req.Collection = r.Form.Get("collection")
		req.ID = r.Form.Get("id")
		req.Direction = r.Form.Get("direction")
		req.Sort = r.Form.Get("sort")
		if v := strings.TrimSpace(r.Form.Get("columns")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, model.ValidationError{Field: "columns", Reason: "must be an integer"}
			}
			req.Columns = n
		}
		if v := strings.TrimSpace(r.Form.Get("index")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, model.ValidationError{Field: "index", Reason: "must be an integer"}
			}
			req.Index = &n
		}
		if v := strings.TrimSpace(r.Form.Get("persist")); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return req, model.ValidationError{Field: "persist", Reason: "must be true or false"}
			}
			req.Persist = b
		}
	}
	// Query values fill anything the body left out, so datastar actions can put
	// their arguments in the URL.
	q := r.URL.Query()
	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = q.Get(key)
		}
	}
	fill(&req.Action, "action")
	fill(&req.Collection, "collection")
	fill(&req.ID, "id")
	fill(&req.Direction, "direction")
	fill(&req.Sort, "sort")
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	req.ID = strings.TrimSpace(req.ID)
	return req, nil
}

// handleAjax is the single action endpoint of the admin page.
func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	req, err := parseAjaxRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	col := strings.TrimSpace(req.Collection)
	if col == "" {
		col = s.collectionFor(r)
	}
	if req.Action != "sort" && !s.writable(w) {
		return
	}
	ctx := r.Context()

	switch req.Action {
	case "move":
		dir, err := order.ParseDirection(req.Direction)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if req.ID == "" {
			s.fail(w, r, model.ValidationError{Field: "id", Reason: "required"})
			return
		}
		res, err := s.svc.Move(ctx, col, req.ID, dir)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.logFor(r).Info("ajax move", zap.String("id", req.ID), zap.String("direction", string(dir)), zap.Bool("moved", res.Moved))
		writeData(w, res)

	case "reflow":
		columns := req.Columns
		if columns == 0 {
			columns = s.cfgSnapshot().Display.Columns
		}
		rr := roster.ReflowRequest{ID: req.ID, Columns: columns, Persist: req.Persist}
		if req.ID == "" {
			if req.Index == nil {
				s.fail(w, r, model.ValidationError{Field: "id", Reason: "id or index required"})
				return
			}
			rr.Index = *req.Index
		}
		res, err := s.svc.Reflow(ctx, col, rr)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, res)

	case "collapse":
		res, err := s.svc.Collapse(ctx, col)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, res)

	case "reconcile":
		res, err := s.svc.Reconcile(ctx, col)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, res)

	case "sort":
		mode, err := order.ParseSortMode(req.Sort)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items, err := s.svc.List(ctx, col, mode)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		html, err := s.renderTemplate("roster", s.rosterVM(col, mode, items, s.cfgSnapshot().Display.Columns, ""))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, map[string]any{"sort": mode, "members": items, "html": html})

	case "":
		s.fail(w, r, model.ValidationError{Field: "action", Reason: "required"})
	default:
		s.fail(w, r, model.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", req.Action)})
	}
}
