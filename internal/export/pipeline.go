package export

import (
	"sort"
	"strings"
	"time"

	"github.com/matcare/matcare/internal/platform/apperr"
)

// dayRange resolves the inclusive From/To calendar days into [start, end)
// instants in loc. Zero values mean unbounded.
func dayRange(f Filters, loc *time.Location) (start, end time.Time, err error) {
	if f.From != "" {
		if start, err = time.ParseInLocation("2006-01-02", strings.TrimSpace(f.From), loc); err != nil {
			return start, end, apperr.Invalid("date_from", "must be YYYY-MM-DD, got %q", f.From)
		}
	}
	if f.To != "" {
		to, perr := time.ParseInLocation("2006-01-02", strings.TrimSpace(f.To), loc)
		if perr != nil {
			return start, end, apperr.Invalid("date_to", "must be YYYY-MM-DD, got %q", f.To)
		}
		end = to.AddDate(0, 0, 1)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return start, end, apperr.Invalid("date_from", "must not be after date_to")
	}
	return start, end, nil
}

func parseSort(s SortOrder) (SortOrder, error) {
	switch SortOrder(strings.ToLower(string(s))) {
	case "", SortNone:
		return SortNone, nil
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	}
	return "", apperr.Invalid("sort", "must be asc, desc or none, got %q", s)
}

// Apply runs the export pipeline: date range, then status, then sort by
// date, then limit. The input slice is not modified.
func Apply(details []Detail, f Filters, loc *time.Location) ([]Detail, error) {
	if loc == nil {
		loc = time.Local
	}
	start, end, err := dayRange(f, loc)
	if err != nil {
		return nil, err
	}
	order, err := parseSort(f.Sort)
	if err != nil {
		return nil, err
	}
	status := strings.TrimSpace(f.Status)
	if strings.EqualFold(status, "all") {
		status = ""
	}

	out := make([]Detail, 0, len(details))
	for _, d := range details {
		at := d.Date.In(loc)
		if !start.IsZero() && at.Before(start) {
			continue
		}
		if !end.IsZero() && !at.Before(end) {
			continue
		}
		if status != "" && !strings.EqualFold(d.Status, status) {
			continue
		}
		out = append(out, d)
	}

	switch order {
	case SortAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	case SortDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
