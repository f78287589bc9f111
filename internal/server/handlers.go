package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/resolver"
	"github.com/conneroisu/pageforge/internal/version"
)

// reloadScript reconnects to the reload feed and refreshes the page on any
// registry event.
const reloadScript = `<script>(function(){var u=(location.protocol==="https:"?"wss://":"ws://")+location.host+"` + RouteReload + `";` +
	`function c(){var s=new WebSocket(u);s.onmessage=function(){location.reload()};s.onclose=function(){setTimeout(c,1000)}}c()})();</script>`

// descriptorFrom builds the resolver descriptor of an HTTP request. The
// "view" query parameter names a view explicitly and "format" selects the
// output format.
func descriptorFrom(r *http.Request) resolver.Descriptor {
	query := r.URL.Query()
	return resolver.Descriptor{
		RequestPath: r.URL.Path,
		LogicalName: query.Get("view"),
		ContextPath: r.URL.Path,
		Format:      query.Get("format"),
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	d := descriptorFrom(r)
	text, err := s.engine.Render(r.Context(), d, nil)
	if err != nil {
		s.writeRenderError(w, r, err)
		return
	}

	if s.config.Server.LiveReload && !s.engine.IsBare(d) {
		text = injectReload(text)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(text))
}

// writeRenderError maps err to a status. Error details go to the log only.
func (s *Server) writeRenderError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := RequestIDFrom(r.Context())

	switch {
	case errors.IsResolutionMiss(err), errors.IsSourceNotFound(err):
		s.logger.Debug(r.Context(), "No page for request", "path", r.URL.Path, "request_id", requestID)
		http.NotFound(w, r)
	case errors.IsRecoverable(err):
		s.logger.Warn(r.Context(), err, "Page render failed", "path", r.URL.Path, "request_id", requestID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		s.logger.Error(r.Context(), err, "Page render failed", "path", r.URL.Path, "request_id", requestID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// injectReload places the reload script before </body>, or appends it when
// the document has no body tag.
func injectReload(html string) string {
	if i := strings.LastIndex(strings.ToLower(html), "</body>"); i >= 0 {
		return html[:i] + reloadScript + html[i:]
	}
	return html + reloadScript
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Pages   int    `json:"pages"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, healthResponse{
		Status:  "healthy",
		Version: version.GetVersion(),
		Pages:   s.engine.Registry().Count(),
	})
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.engine.Pages())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}
