package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"roster-cli/internal/model"
	"roster-cli/internal/roster"
)

// maxImportBytes bounds CSV uploads.
const maxImportBytes = 8 << 20

func (s *Server) handleMembersList(w http.ResponseWriter, r *http.Request) {
	mode, err := s.sortFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.svc.List(r.Context(), s.collectionFor(r), mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, items)
}

func (s *Server) handleMemberGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Get(r.Context(), s.collectionFor(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, m)
}

func (s *Server) handleMemberCreate(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	var in roster.MemberInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.svc.Create(r.Context(), s.collectionFor(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: m})
}

func (s *Server) handleMemberUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	var patch roster.MemberPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.svc.Update(r.Context(), s.collectionFor(r), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, m)
}

func (s *Server) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	id := r.PathValue("id")
	if err := s.svc.Delete(r.Context(), s.collectionFor(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, map[string]string{"deleted": id})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	col := s.collectionFor(r)
	// Render into a buffer first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if _, err := s.svc.Export(r.Context(), col, &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+col+`-members.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport accepts a multipart upload (field "file") or a raw CSV body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	mode, err := roster.ParseImportMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			s.fail(w, r, model.ImportError{Err: err})
			return
		}
		if v := strings.TrimSpace(r.FormValue("mode")); v != "" {
			if mode, err = roster.ParseImportMode(v); err != nil {
				s.fail(w, r, err)
				return
			}
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			s.fail(w, r, model.ValidationError{Field: "file", Reason: "missing upload"})
			return
		}
		defer f.Close()
		src = f
	}

	sum, err := s.svc.Import(r.Context(), s.collectionFor(r), src, mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, sum)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.ValidationError{Field: "body", Reason: "empty"}
		}
		return model.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}
