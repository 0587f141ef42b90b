package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/JonMunkholm/royalties/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// uuidParam parses a uuid path parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, &core.RequestError{Fields: map[string]string{name: "uuid"}}
	}
	return id, nil
}

// formInt reads an integer form value; blank or malformed values yield 0 so
// the required rule reports them.
func formInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(name)))
	if err != nil {
		return 0
	}
	return n
}

// openUpload limits the body to the configured size and returns the
// multipart "file" part. The caller closes the file.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, fmt.Errorf("%w (limit %d bytes)", errTooLarge, s.cfg.Upload.MaxFileSize)
		}
		return nil, nil, fmt.Errorf("invalid request: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errNoFile
	}
	return file, header, nil
}

// Imports

func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.openUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	imp, err := s.service.CreateImport(r.Context(), core.CreateImportRequest{
		FileName:      header.Filename,
		FiscalYear:    formInt(r, "fiscal_year"),
		FiscalQuarter: formInt(r, "fiscal_quarter"),
	}, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, imp)
}

func (s *Server) handlePreviewImport(w http.ResponseWriter, r *http.Request) {
	file, _, err := s.openUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	res, err := core.PreviewImport(file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	imps, err := s.service.ListImports(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imps)
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	imp, err := s.service.GetImport(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imp)
}

func (s *Server) handleRollbackImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.service.RollbackImport(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Statements

func (s *Server) handleCreateStatement(w http.ResponseWriter, r *http.Request) {
	var req core.NewStatement
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("invalid request: %w", err))
		return
	}

	st, err := s.service.CreateStatement(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	sts, err := s.service.ListStatements(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sts)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	st, err := s.service.GetStatement(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStatement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.DeleteStatement(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvoiceStatement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	st, err := s.service.MarkInvoiced(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExportStatement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "csv" && format != "xlsx" {
		respondError(w, r, &core.RequestError{Fields: map[string]string{"format": "oneof=csv xlsx"}})
		return
	}

	rc, name, ctype, err := s.service.OpenExport(r.Context(), id, format)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("export download interrupted", "statement_id", id, "error", err)
	}
}

func (s *Server) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	conflicts, err := s.service.ListConflicts(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	conflictID, err := strconv.ParseInt(chi.URLParam(r, "conflictID"), 10, 64)
	if err != nil || conflictID <= 0 {
		respondError(w, r, &core.RequestError{Fields: map[string]string{"conflictID": "gt=0"}})
		return
	}
	if err := s.service.ResolveConflict(r.Context(), id, conflictID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
