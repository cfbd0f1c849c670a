package imagepkg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// EXIF orientation values this package corrects. Mirrored variants are left
// alone.
const (
	OrientationNone      = 0
	OrientationRotate180 = 3
	OrientationRotate270 = 6
	OrientationRotate90  = 8
)

// ErrNoOrientation means the photo carries no orientation tag at all. Any
// other error from ReadOrientation means a tag or block exists but is broken.
var ErrNoOrientation = errors.New("no orientation metadata")

// ReadOrientation returns the EXIF orientation tag, or OrientationNone with an
// error when the data carries no readable tag.
func ReadOrientation(r io.Reader) (int, error) {
	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return OrientationNone, err
	}
	tag, err := x.Get(exif.Orientation)
	if exif.IsTagNotPresentError(err) {
		return OrientationNone, ErrNoOrientation
	}
	if err != nil {
		return OrientationNone, err
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationNone, err
	}
	return v, nil
}

// Orient rotates img counter-clockwise so that it displays upright. Unknown
// tags pass the image through unchanged.
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationRotate270:
		return imaging.Rotate270(img)
	case OrientationRotate90:
		return imaging.Rotate90(img)
	}
	return img
}

// DecodeSource decodes raw photo bytes without applying EXIF orientation and
// reports the orientation tag separately. orientErr is informational only.
func DecodeSource(data []byte) (img image.Image, orientation int, orientErr error, err error) {
	img, err = imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, OrientationNone, nil, err
	}
	orientation, orientErr = ReadOrientation(bytes.NewReader(data))
	if orientErr != nil && !errors.Is(orientErr, ErrNoOrientation) && !hasExifBlock(data) {
		orientErr = fmt.Errorf("%w: %v", ErrNoOrientation, orientErr)
	}
	return img, orientation, orientErr, nil
}

var exifMarker = []byte("Exif\x00\x00")

func hasExifBlock(data []byte) bool {
	return bytes.HasPrefix(data, []byte("II*\x00")) ||
		bytes.HasPrefix(data, []byte("MM\x00*")) ||
		bytes.Contains(data, exifMarker)
}

// LogOrientationError reports orientErr from DecodeSource: Debug when the
// photo simply has no tag, Warn when the metadata is present but unreadable.
func LogOrientationError(logger *zap.Logger, source string, orientErr error) {
	switch {
	case orientErr == nil || logger == nil:
	case errors.Is(orientErr, ErrNoOrientation):
		logger.Debug("No orientation metadata", zap.String("source", source), zap.Error(orientErr))
	default:
		logger.Warn("Orientation metadata unreadable, keeping pixels as stored",
			zap.String("source", source), zap.Error(orientErr))
	}
}
