package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Detection is one recorded detection attempt.
type Detection struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Source       string    `json:"source"`
	ScreenWidth  int       `json:"screen_width"`
	ScreenHeight int       `json:"screen_height"`
	Found        bool      `json:"found"`
	CenterX      int       `json:"center_x"`
	CenterY      int       `json:"center_y"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Score        float64   `json:"score"`
	BlueRatio    float64   `json:"blue_ratio"`
	Candidates   int       `json:"candidates"`
	LatencyMS    float64   `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
}

// Summary aggregates the detection history.
type Summary struct {
	Total        int     `json:"total"`
	Found        int     `json:"found"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// DetectionRepository provides access to recorded detections.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

const detectionColumns = `id, created_at, source, screen_width, screen_height, found,
	center_x, center_y, width, height, score, blue_ratio, candidates, latency_ms, error`

// Create inserts a detection. CreatedAt is set when zero.
func (r *DetectionRepository) Create(d *Detection) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO detections (`+detectionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CreatedAt, d.Source, d.ScreenWidth, d.ScreenHeight, d.Found,
		d.CenterX, d.CenterY, d.Width, d.Height, d.Score, d.BlueRatio, d.Candidates, d.LatencyMS, d.Error,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(row rowScanner) (*Detection, error) {
	d := &Detection{}
	err := row.Scan(
		&d.ID, &d.CreatedAt, &d.Source, &d.ScreenWidth, &d.ScreenHeight, &d.Found,
		&d.CenterX, &d.CenterY, &d.Width, &d.Height, &d.Score, &d.BlueRatio, &d.Candidates, &d.LatencyMS, &d.Error,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetByID retrieves a detection by its ID.
func (r *DetectionRepository) GetByID(id string) (*Detection, error) {
	d, err := scanDetection(r.db.QueryRow(
		`SELECT `+detectionColumns+` FROM detections WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns up to limit detections, newest first.
func (r *DetectionRepository) List(limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT `+detectionColumns+` FROM detections
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Detection
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Summary returns totals over the whole history.
func (r *DetectionRepository) Summary() (*Summary, error) {
	s := &Summary{}
	var found sql.NullInt64
	var avg sql.NullFloat64

	err := r.db.QueryRow(
		`SELECT COUNT(*), SUM(found), AVG(latency_ms) FROM detections`,
	).Scan(&s.Total, &found, &avg)
	if err != nil {
		return nil, err
	}

	s.Found = int(found.Int64)
	s.AvgLatencyMS = avg.Float64
	if s.Total > 0 {
		s.SuccessRate = float64(s.Found) / float64(s.Total) * 100
	}
	return s, nil
}

// DeleteAll removes every detection and returns how many were deleted.
func (r *DetectionRepository) DeleteAll() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM detections`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
