package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/bluescan/internal/detector"
)

// ProfileSource resolves detection profiles. detector.ProfileLookup implements it.
type ProfileSource interface {
	Profile(res detector.Resolution) (detector.ResolutionProfile, error)
	IsResolutionSimilar(a, b detector.Resolution) bool
}

// ProfileHandler exposes resolution profiles and the similarity check.
type ProfileHandler struct {
	source ProfileSource
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(src ProfileSource) *ProfileHandler {
	return &ProfileHandler{source: src}
}

type similarResponse struct {
	A       detector.Resolution `json:"a"`
	B       detector.Resolution `json:"b"`
	Similar bool                `json:"similar"`
}

// ServeHTTP handles GET /api/profile?resolution=WxH and
// GET /api/profile/similar?a=WxH&b=WxH.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/profile")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		h.profile(w, r)
	case "similar":
		h.similar(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ProfileHandler) profile(w http.ResponseWriter, r *http.Request) {
	res, err := detector.ParseResolution(r.URL.Query().Get("resolution"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "resolution must be WIDTHxHEIGHT")
		return
	}

	p, err := h.source.Profile(res)
	if err != nil {
		if errors.Is(err, detector.ErrInvalidProfile) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to derive profile")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) similar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, errA := detector.ParseResolution(q.Get("a"))
	b, errB := detector.ParseResolution(q.Get("b"))
	if errA != nil || errB != nil {
		writeError(w, http.StatusBadRequest, "a and b must be WIDTHxHEIGHT")
		return
	}

	writeJSON(w, http.StatusOK, similarResponse{A: a, B: b, Similar: h.source.IsResolutionSimilar(a, b)})
}
