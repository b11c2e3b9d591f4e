package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"leihlokal/shared/audit"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /admin/reservations.xlsx?month=2026-01
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var from, to time.Time
	filename := "reservierungen.xlsx"
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.ParseInLocation("2006-01", m, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid month; expected YYYY-MM")
			return
		}
		from, to = audit.MonthBounds(t)
		filename = audit.Filename(from)
	}

	var buf bytes.Buffer
	n, err := s.exporter.Export(r.Context(), &buf, from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("export journal")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.Header().Set("X-Row-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
