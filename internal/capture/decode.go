package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DecodeFrame decodes PNG or JPEG bytes into a BGR Mat.
// The caller is responsible for closing the returned Mat.
func DecodeFrame(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("decode frame: %w", ErrEmptyFrame)
	}

	return &mat, nil
}

// LoadFrame reads an image file into a BGR Mat.
// The caller is responsible for closing the returned Mat.
func LoadFrame(path string) (*gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("load frame %s: %w", path, ErrEmptyFrame)
	}
	return &mat, nil
}
