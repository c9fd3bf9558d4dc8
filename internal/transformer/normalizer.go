// Package transformer maps raw shard records onto the fixed output row.
//
// Every column except image and image_size is looked up by name and rendered
// with Text. The image column accepts a bare binary payload, the
// {bytes, path} struct used by Hugging Face datasets, or a path string.
// Payloads are either materialized to disk or summarized with a placeholder;
// image_size is derived from the payload header when possible and falls back
// to the source column.
package transformer

import (
	"fmt"

	"dsextract/internal/images"
	"dsextract/internal/runstate"
	"dsextract/internal/schema"
	"dsextract/pkg/records"
)

// ImageSink stores an image payload and returns the value for the image
// column. *images.Materializer implements it.
type ImageSink interface {
	Materialize(payload []byte, recordIndex int64, run *runstate.Run) (string, error)
}

var _ ImageSink = (*images.Materializer)(nil)

// Normalizer converts records into rows. A nil sink disables image saving.
type Normalizer struct {
	sink ImageSink
}

// NewNormalizer returns a Normalizer that hands payloads to sink, or
// renders placeholders when sink is nil.
func NewNormalizer(sink ImageSink) *Normalizer {
	return &Normalizer{sink: sink}
}

// Normalize maps rec onto a row and counts a success in run. index is the
// process-wide record index used for image naming. On error nothing is
// counted and no image is written unless the error came from the sink.
func (n *Normalizer) Normalize(rec records.Record, index int64, run *runstate.Run) (schema.Row, error) {
	var row schema.Row

	for _, col := range schema.Columns() {
		if col == schema.Image || col == schema.ImageSize {
			continue
		}
		v, ok := rec.Get(col)
		if !ok {
			continue
		}
		s, err := Text(v)
		if err != nil {
			return schema.Row{}, fmt.Errorf("%s: %w", col, err)
		}
		row.Set(col, s)
	}

	src, err := imageSource(rec)
	if err != nil {
		return schema.Row{}, err
	}

	var (
		w, h   int
		sized  bool
		imgVal string
	)
	if src.payload != nil {
		w, h, sized = images.Dimensions(src.payload)
	}

	if sized {
		row.Set(schema.ImageSize, fmt.Sprintf("%dx%d", w, h))
	} else if v, ok := rec.Get(schema.ImageSize); ok {
		s, err := Text(v)
		if err != nil {
			return schema.Row{}, fmt.Errorf("%s: %w", schema.ImageSize, err)
		}
		row.Set(schema.ImageSize, s)
	}

	switch {
	case src.payload != nil && n.sink != nil:
		imgVal, err = n.sink.Materialize(src.payload, index, run)
		if err != nil {
			return schema.Row{}, fmt.Errorf("%s: %w", schema.Image, err)
		}
	case src.payload != nil:
		imgVal = Placeholder(w, h, sized)
	default:
		imgVal = cleanText(src.ref)
	}
	row.Set(schema.Image, imgVal)

	run.RecordSucceeded()
	return row, nil
}

// Placeholder is the image column value for a payload that is not saved.
func Placeholder(width, height int, sized bool) string {
	if !sized {
		return "Image available"
	}
	return fmt.Sprintf("Image available (size: (%d, %d))", width, height)
}

type imageRef struct {
	payload []byte
	ref     string
}

// imageSource extracts the payload or reference carried by the image
// column. A zero imageRef means no image.
func imageSource(rec records.Record) (imageRef, error) {
	v, ok := rec.Get(schema.Image)
	if !ok {
		return imageRef{}, nil
	}
	switch v.Kind {
	case records.KindNull:
		return imageRef{}, nil
	case records.KindBlob:
		return imageRef{payload: nonNil(v.Blob)}, nil
	case records.KindText:
		return imageRef{ref: v.Str}, nil
	case records.KindStruct:
		if b, ok := v.Member("bytes"); ok && !b.IsNull() {
			if b.Kind != records.KindBlob {
				return imageRef{}, fmt.Errorf("%s.bytes: %w: %s", schema.Image, ErrUnexpectedType, b.Kind)
			}
			return imageRef{payload: nonNil(b.Blob)}, nil
		}
		if p, ok := v.Member("path"); ok && !p.IsNull() {
			if p.Kind != records.KindText {
				return imageRef{}, fmt.Errorf("%s.path: %w: %s", schema.Image, ErrUnexpectedType, p.Kind)
			}
			return imageRef{ref: p.Str}, nil
		}
		return imageRef{}, nil
	default:
		return imageRef{}, fmt.Errorf("%s: %w: %s", schema.Image, ErrUnexpectedType, v.Kind)
	}
}

// nonNil keeps an empty payload distinguishable from no payload.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
