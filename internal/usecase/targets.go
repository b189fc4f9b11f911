package usecase

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/compintel/backend/internal/domain"
)

// ParseTargetsText reads one URL per line, skipping blanks and repeats
func ParseTargetsText(text string) []domain.BatchTarget {
	var targets []domain.BatchTarget
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		url := strings.TrimSpace(line)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		targets = append(targets, domain.BatchTarget{URL: url})
	}
	return targets
}

// ParseTargetsCSV reads a table with a "url" column and an optional
// "competitor" or "competitor_name" column. Header matching ignores case.
func ParseTargetsCSV(r io.Reader) ([]domain.BatchTarget, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: csv is empty", domain.ErrInvalidRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %w", domain.ErrInvalidRequest, err)
	}

	urlCol, competitorCol := -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch {
		case name == "url" && urlCol < 0:
			urlCol = i
		case (name == "competitor" || name == "competitor_name") && competitorCol < 0:
			competitorCol = i
		}
	}
	if urlCol < 0 {
		return nil, fmt.Errorf("%w: no url column found in %v", domain.ErrInvalidRequest, header)
	}

	var targets []domain.BatchTarget
	seen := make(map[string]bool)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv row: %w", domain.ErrInvalidRequest, err)
		}
		if urlCol >= len(row) {
			continue
		}
		url := strings.TrimSpace(row[urlCol])
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		target := domain.BatchTarget{URL: url}
		if competitorCol >= 0 && competitorCol < len(row) {
			target.Competitor = strings.TrimSpace(row[competitorCol])
		}
		targets = append(targets, target)
	}
	return targets, nil
}
