// Package metaread extracts capture metadata from stored photo files.
package metaread

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/barasher/go-exiftool"

	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// exiftool's timestamp format
const exifTimeLayout = "2006:01:02 15:04:05"

// ExiftoolReader reads EXIF metadata through a long-running exiftool process.
// Reads are best-effort: files without usable metadata yield a nil result.
type ExiftoolReader struct {
	et *exiftool.Exiftool
}

// NewExiftoolReader starts an exiftool process. binaryPath may be empty to
// search PATH.
func NewExiftoolReader(binaryPath string) (*ExiftoolReader, error) {
	var opts []func(*exiftool.Exiftool) error
	if binaryPath != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binaryPath))
	}

	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("starting exiftool: %w", err)
	}
	return &ExiftoolReader{et: et}, nil
}

// Read extracts capture metadata from the file at path. A file exiftool
// cannot process returns (nil, nil).
func (r *ExiftoolReader) Read(ctx context.Context, path string) (*model.ExifMetadata, error) {
	infos := r.et.ExtractMetadata(path)
	if len(infos) == 0 || infos[0].Err != nil {
		return nil, nil
	}
	fields := infos[0]

	meta := &model.ExifMetadata{}
	found := false

	if raw, err := fields.GetString("DateTimeOriginal"); err == nil {
		if t, err := time.ParseInLocation(exifTimeLayout, raw, time.Local); err == nil {
			meta.CaptureTime = &t
			found = true
		}
	}
	if make, err := fields.GetString("Make"); err == nil {
		meta.Camera = make
		if mdl, err := fields.GetString("Model"); err == nil {
			meta.Camera = make + " " + mdl
		}
		found = true
	}
	if lens, err := fields.GetString("LensModel"); err == nil {
		meta.Lens = lens
		found = true
	}
	if iso, err := fields.GetFloat("ISO"); err == nil {
		meta.ISO = strconv.FormatFloat(iso, 'f', -1, 64)
		found = true
	}
	if aperture, err := fields.GetFloat("FNumber"); err == nil {
		meta.Aperture = "f/" + strconv.FormatFloat(aperture, 'f', -1, 64)
		found = true
	}
	if lat, err := fields.GetFloat("GPSLatitude"); err == nil {
		if lon, err := fields.GetFloat("GPSLongitude"); err == nil {
			meta.GPSLatitude = &lat
			meta.GPSLongitude = &lon
			found = true
		}
	}

	if !found {
		return nil, nil
	}
	return meta, nil
}

// Close stops the exiftool process.
func (r *ExiftoolReader) Close() error {
	return r.et.Close()
}

var _ library.MetadataReader = (*ExiftoolReader)(nil)
