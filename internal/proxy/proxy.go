// Package proxy relays browser requests to the record API under the
// storefront's own origin.
package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultMaxBody = 10 << 20

var errBodyTooLarge = errors.New("request body too large")

// Handler forwards /<prefix>/<path>?<query> to <base>/<path>?<query>.
type Handler struct {
	base    string
	prefix  string
	maxBody int64
	client  *http.Client
	logger  *zerolog.Logger
}

// New creates a proxy to base; prefix is stripped from incoming paths.
func New(base, prefix string, timeout time.Duration, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "proxy").Logger()
	return &Handler{
		base:    strings.TrimRight(base, "/"),
		prefix:  strings.TrimRight(prefix, "/"),
		maxBody: defaultMaxBody,
		client:  &http.Client{Timeout: timeout},
		logger:  &l,
	}
}

func (h *Handler) target(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, h.prefix)
	path = strings.TrimLeft(path, "/")
	u := h.base + "/" + path
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

// body re-encodes JSON bodies and passes anything else through as text.
// Bodies over maxBody are rejected rather than forwarded truncated.
func (h *Handler) body(r *http.Request) (io.Reader, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return http.NoBody, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > h.maxBody {
		return nil, errBodyTooLarge
	}
	if json.Valid(raw) {
		compact := &bytes.Buffer{}
		if err := json.Compact(compact, raw); err == nil {
			return compact, nil
		}
	}
	return bytes.NewReader(raw), nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := h.target(r)

	reqBody, err := h.body(r)
	if errors.Is(err, errBodyTooLarge) {
		h.logger.Warn().Str("target", target).Int64("limit", h.maxBody).Msg("Proxy request body too large")
		writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if err != nil {
		h.fail(w, target, err)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, reqBody)
	if err != nil {
		h.fail(w, target, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.fail(w, target, err)
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.fail(w, target, err)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		w.Header().Set("Content-Type", "application/json")
	} else if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}

func (h *Handler) fail(w http.ResponseWriter, target string, err error) {
	h.logger.Error().Err(err).Str("target", target).Msg("Proxy error")
	writeJSONError(w, http.StatusBadGateway, "Failed to proxy request")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
