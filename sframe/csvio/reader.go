// Package csvio builds frames from CSV text.
package csvio

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/brimdata/zframe"
	"github.com/brimdata/zframe/runtime"
	"github.com/brimdata/zframe/sframe"
	"github.com/brimdata/zframe/zqe"
	"go.uber.org/zap"
)

var ErrEmpty = errors.New("empty csv file")

type Options struct {
	// Delimiter separates fields.  Zero means a comma.
	Delimiter rune
	// NumSegments is the segment count of the result.  Zero means the
	// context's parallelism.
	NumSegments int
	// StringsOnly disables type inference.
	StringsOnly bool
	// Kinds overrides the inferred kind of the named columns.
	Kinds map[string]zframe.Kind
}

// Read parses CSV with a header line from r.  Each column's kind is the
// narrowest of int, float, datetime and string that accepts every
// non-empty cell.  Empty cells are Undefined.
func Read(rctx *runtime.Context, r io.Reader, opts Options) (*sframe.Frame, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	hdr, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	kinds := make([]zframe.Kind, len(hdr))
	for col, name := range hdr {
		if kind, ok := opts.Kinds[name]; ok {
			kinds[col] = kind
		} else if opts.StringsOnly {
			kinds[col] = zframe.KindString
		} else {
			kinds[col] = infer(records, col)
		}
	}
	nseg := opts.NumSegments
	if nseg < 1 {
		nseg = rctx.Parallelism()
	}
	w, err := sframe.Create(rctx, hdr, kinds, nseg)
	if err != nil {
		return nil, err
	}
	n := len(records)
	err = runtime.ParallelFor(rctx, nseg, func(i int) error {
		seg := w.Segment(i)
		row := make([]zframe.Value, len(hdr))
		for k := i * n / nseg; k < (i+1)*n/nseg; k++ {
			for col, field := range records[k] {
				v, err := parse(field, kinds[col])
				if err != nil {
					return zqe.ErrInvalid("csv line %d, column %q: %s", k+2, hdr[col], err)
				}
				row[col] = v
			}
			if err := seg.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		w.Abort()
		return nil, err
	}
	rctx.Logger.Debug("csv parsed", zap.Int("rows", n), zap.Strings("columns", hdr))
	return w.Close()
}

func infer(records [][]string, col int) zframe.Kind {
	kind := zframe.KindUndefined
	for _, rec := range records {
		s := rec[col]
		if s == "" {
			continue
		}
		kind = widen(kind, s)
		if kind == zframe.KindString {
			break
		}
	}
	if kind == zframe.KindUndefined {
		return zframe.KindString
	}
	return kind
}

// widen returns the narrowest kind at least as wide as kind that can
// represent s.
func widen(kind zframe.Kind, s string) zframe.Kind {
	switch kind {
	case zframe.KindUndefined:
		switch {
		case isInt(s):
			return zframe.KindInt
		case isFloat(s):
			return zframe.KindFloat
		case isTime(s):
			return zframe.KindDatetime
		}
	case zframe.KindInt:
		if isInt(s) {
			return zframe.KindInt
		}
		if isFloat(s) {
			return zframe.KindFloat
		}
	case zframe.KindFloat:
		if isFloat(s) {
			return zframe.KindFloat
		}
	case zframe.KindDatetime:
		if isTime(s) {
			return zframe.KindDatetime
		}
	}
	return zframe.KindString
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isTime(s string) bool {
	_, err := dateparse.ParseStrict(s)
	return err == nil
}

func parse(s string, kind zframe.Kind) (zframe.Value, error) {
	if s == "" {
		return zframe.Undefined, nil
	}
	switch kind {
	case zframe.KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return zframe.Undefined, err
		}
		return zframe.NewInt(i), nil
	case zframe.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return zframe.Undefined, err
		}
		return zframe.NewFloat(f), nil
	case zframe.KindDatetime:
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return zframe.Undefined, err
		}
		return zframe.NewDatetime(t), nil
	case zframe.KindString:
		return zframe.NewString(s), nil
	}
	return zframe.Undefined, zqe.ErrInvalid("cannot parse csv into %s column", kind)
}
