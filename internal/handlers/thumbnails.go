package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/cachekey"
	"movieview/internal/logging"
	"movieview/internal/media"
	"movieview/internal/thumbnail"
	"movieview/internal/thumbnails"
)

// maxRequestBody bounds generation request bodies.
const maxRequestBody = 64 << 10

// GenerateRequest is the body of POST /api/thumbnails. Empty fields take the
// configured defaults.
type GenerateRequest struct {
	Path          string `json:"path"`
	Density       string `json:"density,omitempty"`
	Quality       string `json:"quality,omitempty"`
	Format        string `json:"format,omitempty"`
	MaxThumbnails int    `json:"maxThumbnails,omitempty"`
}

// SessionResponse reports the outcome of a generation session.
type SessionResponse struct {
	Fingerprint string               `json:"fingerprint"`
	State       string               `json:"state"`
	Progress    thumbnails.Progress  `json:"progress"`
	Parameters  thumbnail.Parameters `json:"parameters"`
	Thumbnails  []thumbnails.Result  `json:"thumbnails"`
	Error       *ErrorBody           `json:"error,omitempty"`
}

// GetThumbnail serves one thumbnail as JPEG.
//
//	GET /api/thumbnail?path=<relative>&t=<seconds>[&quality=<name>]
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	fullPath, err := h.resolvePath(query.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}

	ts, err := strconv.ParseFloat(query.Get("t"), 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
		badRequest(w, errors.New("t must be a finite, non-negative number of seconds"), "invalid timestamp")
		return
	}

	params := h.params
	if q := query.Get("quality"); q != "" {
		quality, err := thumbnail.ParseQuality(q)
		if err != nil {
			badRequest(w, err, "invalid quality")
			return
		}
		params = thumbnail.NewParameters(params.Density, quality, params.Format)
	}

	img, source, err := h.orch.Thumbnail(r.Context(), fullPath, ts, params)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := media.Encode(img, thumbnail.FormatJPEG)
	if err != nil {
		writeError(w, platformerrors.Wrap(err, thumbnail.CodeEncodingFailed, "encode thumbnail"))
		return
	}

	w.Header().Set("Content-Type", thumbnail.FormatJPEG.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Thumbnail-Source", string(source))
	if _, err := w.Write(data); err != nil {
		logging.Debug("failed to write thumbnail: %v", err)
	}
}

// GenerateThumbnails runs a session over a whole video and returns the
// produced thumbnails in timestamp order. Closing the connection cancels the
// session; thumbnails already produced stay cached.
//
//	POST /api/thumbnails
func (h *Handlers) GenerateThumbnails(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		badRequest(w, err, "invalid request body")
		return
	}

	fullPath, err := h.resolvePath(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}

	params, err := h.parseParameters(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.MaxThumbnails < 0 {
		badRequest(w, errors.New("maxThumbnails must not be negative"), "invalid maxThumbnails")
		return
	}
	maxThumbnails := req.MaxThumbnails
	if maxThumbnails == 0 {
		maxThumbnails = h.maxThumbnails
	}

	session := h.orch.NewSession(fullPath, params, thumbnails.SessionOptions{
		MaxThumbnails: maxThumbnails,
		OnProgress: func(p thumbnails.Progress) {
			logging.Debug("Thumbnails for %s: %d/%d", req.Path, p.Done, p.Total)
		},
	})

	results, runErr := session.Run(r.Context())
	if results == nil {
		results = []thumbnails.Result{}
	}

	resp := SessionResponse{
		Fingerprint: session.Fingerprint(),
		State:       session.State().String(),
		Progress:    session.Progress(),
		Parameters:  params,
		Thumbnails:  results,
	}

	status := http.StatusOK
	if runErr != nil {
		status = statusFor(runErr)
		resp.Error = &ErrorBody{
			ErrorResponse: platformerrors.ToJSON(runErr),
			Suggestion:    thumbnails.RecoverySuggestion(runErr),
		}
		logging.Info("Session for %s ended %s: %v", req.Path, resp.State, runErr)
	}
	writeJSONStatus(w, status, resp)
}

// CancelThumbnails cancels the running session of a video.
//
//	DELETE /api/thumbnails?path=<relative>
func (h *Handlers) CancelThumbnails(w http.ResponseWriter, r *http.Request) {
	fullPath, err := h.resolvePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := cachekey.ForFile(fullPath)
	if err != nil {
		writeError(w, err)
		return
	}

	cancelled := h.orch.CancelSession(id.Fingerprint)
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"fingerprint": id.Fingerprint,
		"cancelled":   cancelled,
	})
}

func (h *Handlers) parseParameters(req GenerateRequest) (thumbnail.Parameters, error) {
	density := h.params.Density
	quality := h.params.Quality
	format := h.params.Format

	var err error
	if req.Density != "" {
		if density, err = thumbnail.ParseDensity(req.Density); err != nil {
			return thumbnail.Parameters{}, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid density")
		}
	}
	if req.Quality != "" {
		if quality, err = thumbnail.ParseQuality(req.Quality); err != nil {
			return thumbnail.Parameters{}, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid quality")
		}
	}
	if req.Format != "" {
		if format, err = thumbnail.ParseFormat(req.Format); err != nil {
			return thumbnail.Parameters{}, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid format")
		}
	}
	return thumbnail.NewParameters(density, quality, format), nil
}
