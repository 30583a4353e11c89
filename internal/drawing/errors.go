package drawing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSeries is matched by every *UnknownSeriesError.
	ErrUnknownSeries = errors.New("drawing: unknown series")
	// ErrSchemaMismatch is matched by every *SchemaMismatchError.
	ErrSchemaMismatch = errors.New("drawing: series schema mismatch")
	// ErrSurfaceUnavailable is returned by encoders when no pixel context
	// has been configured.
	ErrSurfaceUnavailable = errors.New("drawing: rendering surface unavailable")
	// ErrInvalidGeometry is returned for surface sizes or ratios outside
	// the surface limits.
	ErrInvalidGeometry = errors.New("drawing: invalid surface geometry")
)

// UnknownSeriesError reports a series identifier outside a surface's
// fixed set.
type UnknownSeriesError struct {
	Series SeriesID
}

func (e *UnknownSeriesError) Error() string {
	return fmt.Sprintf("drawing: unknown series %q", string(e.Series))
}

func (e *UnknownSeriesError) Is(target error) bool {
	return target == ErrUnknownSeries
}

// SchemaMismatchError reports a Drawing whose series keys do not match the
// surface's fixed set. Restore applies nothing when it returns this error.
type SchemaMismatchError struct {
	Missing    []SeriesID
	Unexpected []SeriesID
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+joinIDs(e.Missing))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+joinIDs(e.Unexpected))
	}
	return "drawing: series schema mismatch: " + strings.Join(parts, "; ")
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

func joinIDs(ids []SeriesID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}
