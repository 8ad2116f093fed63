// Package stream serves single byte ranges of a blob for resumable and partial downloads.
package stream

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"docstore/internal/model"
)

const rangeUnit = "bytes="

// Range is an inclusive byte range [Start, End] within a blob.
type Range struct {
	Start int64
	End   int64
}

// Length is the number of bytes covered by r.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// Response describes what to send back for one download.
type Response struct {
	Body    io.Reader
	Start   int64
	End     int64
	Length  int64
	Total   int64
	Partial bool
}

// ContentRange renders the Content-Range value for a partial response.
func (r *Response) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// UnsatisfiedRange renders the Content-Range value that accompanies a 416.
func UnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseRange interprets a Range header against a blob of size bytes.
//
// A nil range with a nil error means "serve everything": no header, a unit other
// than bytes, a syntactically broken range, or a multi-range request. A well-formed
// single range that cannot be satisfied returns model.ErrInvalidInput instead of
// falling back to the full content.
func ParseRange(header string, size int64) (*Range, error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, rangeUnit) {
		return nil, nil
	}
	set := strings.TrimSpace(strings.TrimPrefix(header, rangeUnit))
	if set == "" || strings.Contains(set, ",") {
		return nil, nil
	}
	first, last, ok := strings.Cut(set, "-")
	if !ok {
		return nil, nil
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	switch {
	case first == "" && last == "":
		return nil, nil

	// bytes=-N: the final N bytes.
	case first == "":
		n, ok := parseOffset(last)
		if !ok {
			return nil, nil
		}
		if n == 0 || size == 0 {
			return nil, unsatisfiable(header, size)
		}
		if n > size {
			n = size
		}
		return &Range{Start: size - n, End: size - 1}, nil

	// bytes=A-: from A to the end.
	case last == "":
		start, ok := parseOffset(first)
		if !ok {
			return nil, nil
		}
		if start >= size {
			return nil, unsatisfiable(header, size)
		}
		return &Range{Start: start, End: size - 1}, nil

	// bytes=A-B
	default:
		start, ok1 := parseOffset(first)
		end, ok2 := parseOffset(last)
		if !ok1 || !ok2 {
			return nil, nil
		}
		if start > end || start >= size {
			return nil, unsatisfiable(header, size)
		}
		if end >= size {
			end = size - 1
		}
		return &Range{Start: start, End: end}, nil
	}
}

// Serve answers a download of a blob of the given size. Only the requested section
// of blob is read; the caller keeps ownership of blob and closes it after the body
// has been consumed.
func Serve(blob io.ReaderAt, size int64, header string) (*Response, error) {
	rng, err := ParseRange(header, size)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		end := size - 1
		if end < 0 {
			end = 0
		}
		return &Response{
			Body:   io.NewSectionReader(blob, 0, size),
			Start:  0,
			End:    end,
			Length: size,
			Total:  size,
		}, nil
	}
	return &Response{
		Body:    io.NewSectionReader(blob, rng.Start, rng.Length()),
		Start:   rng.Start,
		End:     rng.End,
		Length:  rng.Length(),
		Total:   size,
		Partial: true,
	}, nil
}

func parseOffset(s string) (int64, bool) {
	if s == "" || s[0] == '+' {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func unsatisfiable(header string, size int64) error {
	return fmt.Errorf("%w: range %q not satisfiable for %d bytes", model.ErrInvalidInput, header, size)
}
