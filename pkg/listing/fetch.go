package listing

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrListing is returned when neither listing strategy produced entries
var ErrListing = errors.New("listing failed")

// Source lists the current remote directory in either format
type Source interface {
	ListFacts() ([]Record, error)
	ListLines() ([]string, error)
}

// Fetch lists the current directory, preferring structured facts and falling
// back to legacy lines when the endpoint rejects the structured request.
func Fetch(src Source, log zerolog.Logger) ([]Entry, error) {
	res, err := Raw(src, log)
	if err != nil {
		return nil, err
	}
	return Normalize(res), nil
}

// Raw is Fetch without normalization
func Raw(src Source, log zerolog.Logger) (Result, error) {
	records, factsErr := src.ListFacts()
	if factsErr == nil {
		return FromRecords(records), nil
	}

	log.Warn().Err(factsErr).Msg("structured listing not supported, falling back to LIST")

	lines, linesErr := src.ListLines()
	if linesErr != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrListing, errors.Join(factsErr, linesErr))
	}
	return FromLines(lines), nil
}
