package detector_test

import (
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/bluescan/internal/detector"
	"github.com/ayusman/bluescan/internal/testframes"
)

type fixedResolution struct {
	res detector.Resolution
	err error
}

func (f fixedResolution) Resolution() (detector.Resolution, error) { return f.res, f.err }

func newDetector(t *testing.T, opts ...detector.Option) *detector.ButtonDetector {
	t.Helper()
	d, err := detector.New(detector.DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestButtonDetector_SingleButton(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := testframes.ButtonFrame()
	defer frame.Close()

	d := newDetector(t)
	result, err := d.Detect(&frame)
	require.NoError(t, err)
	require.NotNil(t, result, "expected a detection")

	assert.Equal(t, 960, result.CenterX)
	assert.Equal(t, 925, result.CenterY)
	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 50, result.Height)
	assert.Equal(t, 1, result.Candidates)
	assert.InDelta(t, 1.0, result.BlueRatio, 1e-9)
	assert.InDelta(t, 0.95, result.Score, 1e-9)
	assert.Equal(t, detector.Resolution{Width: 1920, Height: 1080}, result.Resolution)

	stats := d.Statistics()
	assert.Equal(t, 1, stats.Attempts)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 100.0, stats.SuccessRate)
	assert.Equal(t, 1, stats.Samples)
}

func TestButtonDetector_Deterministic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := testframes.WithBoxes(1920, 1080,
		image.Rect(300, 300, 450, 350),
		image.Rect(900, 700, 1100, 760),
	)
	defer frame.Close()

	d := newDetector(t)
	first, err := d.Detect(&frame)
	require.NoError(t, err)
	require.NotNil(t, first)

	for i := 0; i < 3; i++ {
		again, err := d.Detect(&frame)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestButtonDetector_PrefersLowerButton(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := testframes.WithBoxes(1920, 1080,
		image.Rect(300, 200, 500, 250),
		image.Rect(300, 800, 500, 850),
	)
	defer frame.Close()

	result, err := newDetector(t).Detect(&frame)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 825, result.CenterY)
}

func TestButtonDetector_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	tests := []struct {
		name  string
		build func() gocv.Mat
	}{
		{"no blue", func() gocv.Mat { return testframes.Blank(1920, 1080, testframes.Gray) }},
		{"red button", func() gocv.Mat {
			f := testframes.Blank(1920, 1080, testframes.Gray)
			testframes.Fill(&f, testframes.ButtonRect, testframes.Red)
			return f
		}},
		{"too small", func() gocv.Mat {
			return testframes.WithBoxes(1920, 1080, image.Rect(500, 500, 530, 510))
		}},
		{"square", func() gocv.Mat {
			return testframes.WithBoxes(1920, 1080, image.Rect(500, 500, 560, 560))
		}},
		{"touches edge", func() gocv.Mat {
			return testframes.WithBoxes(1920, 1080, image.Rect(10, 500, 210, 550))
		}},
		{"isolated pixels", func() gocv.Mat {
			f := testframes.Blank(1920, 1080, testframes.Gray)
			for x := 400; x < 1400; x += 7 {
				testframes.Fill(&f, image.Rect(x, 600, x+1, 601), testframes.Blue)
			}
			return f
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := tt.build()
			defer frame.Close()

			d := newDetector(t)
			result, err := d.Detect(&frame)
			require.NoError(t, err)
			assert.Nil(t, result)

			stats := d.Statistics()
			assert.Equal(t, 1, stats.Attempts)
			assert.Equal(t, 0, stats.Successes)
			assert.Equal(t, 0.0, stats.SuccessRate)
		})
	}
}

func TestButtonDetector_LightBlue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := testframes.Blank(1920, 1080, testframes.Gray)
	defer frame.Close()
	testframes.Fill(&frame, testframes.ButtonRect, testframes.LightBlue)

	t.Run("default ranges", func(t *testing.T) {
		result, err := newDetector(t).Detect(&frame)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 960, result.CenterX)
		assert.InDelta(t, 1.0, result.BlueRatio, 1e-9)
	})

	t.Run("standard blue only", func(t *testing.T) {
		cfg := detector.DefaultConfig()
		cfg.ColorRanges = cfg.ColorRanges[:1]
		require.Equal(t, "standard_blue", cfg.ColorRanges[0].Name)

		d, err := detector.New(cfg)
		require.NoError(t, err)

		result, err := d.Detect(&frame)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestButtonDetector_HollowOutline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	// 4px border: thick enough to survive the open pass, 1936 of 10000
	// pixels blue inside the box.
	frame := testframes.WithBoxes(1920, 1080, testframes.ButtonRect)
	defer frame.Close()
	testframes.Fill(&frame, testframes.ButtonRect.Inset(4), testframes.Gray)

	result, err := newDetector(t).Detect(&frame)
	require.NoError(t, err)
	assert.Nil(t, result)

	cfg := detector.DefaultConfig()
	cfg.MinBlueRatio = 0.1
	d, err := detector.New(cfg)
	require.NoError(t, err)

	result, err = d.Detect(&frame)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 50, result.Height)
	assert.InDelta(t, 0.1936, result.BlueRatio, 1e-9)
}

func TestButtonDetector_ClosesSmallGap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := testframes.ButtonFrame()
	defer frame.Close()
	testframes.Fill(&frame, image.Rect(960, 900, 961, 950), testframes.Gray)

	result, err := newDetector(t).Detect(&frame)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 50, result.Height)
	assert.Equal(t, 960, result.CenterX)
	assert.InDelta(t, 0.995, result.BlueRatio, 1e-9)
}

func TestButtonDetector_BGRAFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	bgr := testframes.ButtonFrame()
	defer bgr.Close()
	bgra := gocv.NewMat()
	defer bgra.Close()
	gocv.CvtColor(bgr, &bgra, gocv.ColorBGRToBGRA)

	result, err := newDetector(t).Detect(&bgra)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 925, result.CenterY)
}

func TestButtonDetector_GrayscaleFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	gray := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8U)
	defer gray.Close()

	_, err := newDetector(t).Detect(&gray)
	assert.ErrorIs(t, err, detector.ErrInvalidFrame)
}

func TestButtonDetector_NoFrame(t *testing.T) {
	d := newDetector(t)

	result, err := d.Detect(nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	empty := gocv.NewMat()
	defer empty.Close()
	result, err = d.Detect(&empty)
	require.NoError(t, err)
	assert.Nil(t, result)

	stats := d.Statistics()
	assert.Equal(t, 2, stats.Attempts)
	assert.Equal(t, 0, stats.Successes)
}

func TestButtonDetector_ResolutionProvider(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := testframes.ButtonFrame()
	defer frame.Close()

	t.Run("profile follows display", func(t *testing.T) {
		display := detector.Resolution{Width: 3840, Height: 2160}
		d := newDetector(t, detector.WithResolutionProvider(fixedResolution{res: display}))

		result, err := d.Detect(&frame)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, display, result.Resolution)
		assert.True(t, d.ProfileCache().Contains(display))
	})

	t.Run("invalid display fails loudly", func(t *testing.T) {
		d := newDetector(t, detector.WithResolutionProvider(fixedResolution{}))

		result, err := d.Detect(&frame)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, detector.ErrInvalidProfile)
	})

	t.Run("provider error", func(t *testing.T) {
		boom := errors.New("display query failed")
		d := newDetector(t, detector.WithResolutionProvider(fixedResolution{err: boom}))

		_, err := d.Detect(&frame)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, d.Statistics().Attempts)
	})
}

func TestButtonDetector_DebugSink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	frame := testframes.ButtonFrame()
	defer frame.Close()

	var calls int
	var gotSelected *detector.Candidate
	var gotCandidates int
	sink := detector.DebugSinkFunc(func(img gocv.Mat, cs []detector.Candidate, selected *detector.Candidate) {
		calls++
		gotCandidates = len(cs)
		gotSelected = selected
		assert.Equal(t, frame.Rows(), img.Rows())
		assert.Equal(t, frame.Cols(), img.Cols())
	})

	cfg := detector.DefaultConfig()
	cfg.Debug = true
	d, err := detector.New(cfg, detector.WithDebugSink(sink))
	require.NoError(t, err)

	_, err = d.Detect(&frame)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, gotCandidates)
	require.NotNil(t, gotSelected)
	assert.Equal(t, 860, gotSelected.X)

	// Disabled debug mode never calls the sink.
	quiet := newDetector(t, detector.WithDebugSink(sink))
	_, err = quiet.Detect(&frame)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestButtonDetector_Observer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	var mu sync.Mutex
	var results []*detector.Result
	obs := detector.ObserverFunc(func(r *detector.Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})

	d := newDetector(t, detector.WithObserver(obs))

	frame := testframes.ButtonFrame()
	defer frame.Close()
	blank := testframes.Blank(1920, 1080, testframes.Gray)
	defer blank.Close()

	_, err := d.Detect(&frame)
	require.NoError(t, err)
	_, err = d.Detect(&blank)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	require.NotNil(t, results[0])
	assert.Equal(t, 960, results[0].CenterX)
	assert.Nil(t, results[1])

	assert.InDelta(t, 50.0, d.SuccessRate(), 1e-9)
	d.ResetStatistics()
	assert.Equal(t, detector.Stats{}, d.Statistics())
}

func TestButtonDetector_SimilarityUtility(t *testing.T) {
	d := newDetector(t)
	assert.True(t, d.IsResolutionSimilar(
		detector.Resolution{Width: 1920, Height: 1080},
		detector.Resolution{Width: 1900, Height: 1070},
	))
	assert.False(t, d.IsResolutionSimilar(
		detector.Resolution{Width: 1920, Height: 1080},
		detector.Resolution{Width: 1000, Height: 1080},
	))

	p, err := d.Profile(detector.Resolution{Width: 1920, Height: 1080})
	require.NoError(t, err)
	assert.Equal(t, 54, p.EdgeMargin)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := detector.DefaultConfig()
	cfg.ColorRanges = []detector.ColorRange{{Name: "bad", Lower: detector.HSV{H: 130}, Upper: detector.HSV{H: 120}}}

	_, err := detector.New(cfg)
	assert.ErrorIs(t, err, detector.ErrInvalidColorRange)
}
