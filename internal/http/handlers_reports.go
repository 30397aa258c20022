package http

import (
	"bytes"
	"net/http"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	params, err := ParseReportParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.txns.Report(r.Context(), p, params.Range, params.Top)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(rep).Write(w)
}

// handleExportCSV streams the owner's transactions in the selected range.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	params, err := ParseReportParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txns, err := s.txns.Export(r.Context(), p, params.Range)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Buffer so a write failure can still become a 500.
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, txns); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", report.CSVFilename(s.now()), buf.Bytes())
	log.FromContext(r.Context()).InfoContext(r.Context(), "CSV export generated",
		log.FieldUserID, p.ID(),
		log.FieldRange, string(params.Range),
		log.FieldCount, len(txns))
}

func (s *Server) handleStatementPDF(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	params, err := ParseReportParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	txns, err := s.txns.Export(r.Context(), p, params.Range)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := s.now()
	rep := report.Build(txns, params.Range, now, params.Top)

	var buf bytes.Buffer
	if err := report.WritePDF(&buf, rep, txns); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "application/pdf", report.PDFFilename(params.Range, now), buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := core.SuggestedCategories()
	NewJSONResponse().Body(map[string][]string{
		string(core.Expense): cats[core.Expense],
		string(core.Income):  cats[core.Income],
	}).Write(w)
}
