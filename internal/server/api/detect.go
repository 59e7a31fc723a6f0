package api

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayusman/bluescan/internal/app"
	"github.com/ayusman/bluescan/internal/capture"
	"github.com/ayusman/bluescan/internal/detector"
)

// DefaultMaxUploadSize bounds image uploads to /api/detect.
const DefaultMaxUploadSize = 20 << 20

// DetectHandler runs detection on uploaded images.
type DetectHandler struct {
	app       *app.App
	maxUpload int64
	logger    *zap.Logger
}

// NewDetectHandler creates a DetectHandler. maxUpload <= 0 uses DefaultMaxUploadSize.
func NewDetectHandler(a *app.App, maxUpload int64, logger *zap.Logger) *DetectHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetectHandler{app: a, maxUpload: maxUpload, logger: logger}
}

// ServeHTTP handles POST /api/detect. The body is a PNG or JPEG image, sent
// raw or as the "image" field of a multipart form.
func (h *DetectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := h.readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	frame, err := capture.DecodeFrame(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image")
		return
	}
	defer frame.Close()

	report, err := h.app.DetectFrame(frame, app.SourceUpload)
	if err != nil {
		writeDetectError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *DetectHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err == nil {
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, errors.New("multipart form needs an image field")
		}
		defer file.Close()
		return io.ReadAll(file)
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return nil, errors.New("invalid multipart form")
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.New("failed to read image")
	}
	if len(data) == 0 {
		return nil, errors.New("image body is required")
	}
	return data, nil
}

// ScanHandler captures the configured screen and runs detection.
type ScanHandler struct {
	app *app.App
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(a *app.App) *ScanHandler {
	return &ScanHandler{app: a}
}

// ServeHTTP handles POST /api/scan.
func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := h.app.ScanScreen()
	if err != nil {
		if errors.Is(err, app.ErrNoScreen) {
			writeError(w, http.StatusNotFound, "No screen configured")
			return
		}
		writeDetectError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeDetectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, detector.ErrInvalidFrame):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, detector.ErrInvalidProfile):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Detection failed")
	}
}
