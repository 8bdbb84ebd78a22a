package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mtorresweb/spotlight-server/internal/http/response"
	"github.com/mtorresweb/spotlight-server/internal/media"
)

// handleMedia serves a stored image. Backends that presign URLs get a
// redirect; the local backend streams the file.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !media.ValidKey(key) || s.objects == nil {
		response.NotFound(w, "image not found", s.logger)
		return
	}

	if presigner, ok := s.objects.(media.Presigner); ok {
		exists, err := s.objects.Exists(r.Context(), key)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		if !exists {
			response.NotFound(w, "image not found", s.logger)
			return
		}
		url, err := presigner.PresignedURL(r.Context(), key)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		w.Header().Set("Cache-Control", CacheNoStore)
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, err := s.objects.Open(r.Context(), key)
	if errors.Is(err, media.ErrObjectNotFound) {
		response.NotFound(w, "image not found", s.logger)
		return
	}
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", media.ContentTypeOf(key))
	w.Header().Set("Cache-Control", CacheImmutable)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug("media stream interrupted", "key", key, "error", err)
	}
}
