package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/bluescan/internal/app"
	"github.com/ayusman/bluescan/internal/detector"
	"github.com/ayusman/bluescan/internal/store"
	"github.com/ayusman/bluescan/internal/testframes"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMockApp(t *testing.T, s *store.Store) (*app.App, *detector.MockDetector) {
	t.Helper()
	mock := detector.NewMockDetector()
	a, err := app.New(app.Config{Store: s, Detector: mock})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, mock
}

func pngBody(t *testing.T, w, h int) []byte {
	t.Helper()
	frame := testframes.Blank(w, h, testframes.Gray)
	defer frame.Close()
	data, err := testframes.EncodePNG(frame)
	require.NoError(t, err)
	return data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestDetectHandler_RawBody(t *testing.T) {
	s := newTestStore(t)
	a, mock := newMockApp(t, s)
	mock.SetResult(detector.CenteredResult(32, 24, 10, 6))

	h := NewDetectHandler(a, 0, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/detect", bytes.NewReader(pngBody(t, 64, 48)))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report app.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.True(t, report.Found)
	assert.Equal(t, app.SourceUpload, report.Source)
	assert.Equal(t, 32, report.Result.CenterX)
	assert.NotEmpty(t, report.ID)

	got, err := s.Detections().GetByID(report.ID)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, 64, got.ScreenWidth)
	assert.Equal(t, 48, got.ScreenHeight)
}

func TestDetectHandler_Multipart(t *testing.T) {
	a, _ := newMockApp(t, nil)
	h := NewDetectHandler(a, 0, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "screen.png")
	require.NoError(t, err)
	_, err = part.Write(pngBody(t, 32, 32))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/detect", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report app.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.False(t, report.Found)
	assert.Nil(t, report.Result)
}

func TestDetectHandler_BadRequests(t *testing.T) {
	a, mock := newMockApp(t, nil)
	h := NewDetectHandler(a, 1024, nil)

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detect", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/detect", bytes.NewReader(nil)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "image body is required", decodeError(t, rec))
	})

	t.Run("not an image", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/detect", bytes.NewReader([]byte("hello"))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid image", decodeError(t, rec))
	})

	t.Run("too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/detect", bytes.NewReader(make([]byte, 4096))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("multipart without image", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("name", "value"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/detect", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Zero(t, mock.Calls(), "no request should reach the detector")
}

func TestDetectHandler_InvalidFrame(t *testing.T) {
	a, mock := newMockApp(t, nil)
	mock.SetError(detector.ErrInvalidFrame)

	h := NewDetectHandler(a, 0, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/detect", bytes.NewReader(pngBody(t, 16, 16))))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScanHandler_NoScreen(t *testing.T) {
	a, _ := newMockApp(t, nil)
	h := NewScanHandler(a)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scan", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
