package compensacao

import (
	"strings"
	"time"

	"github.com/mmdatafocus/compensacao_backend/models"
	"golang.org/x/text/cases"
)

// FilterAll disables the status or step filter.
const FilterAll = "all"

const dateLayout = "2006-01-02"

// DateRange covers whole days: From's midnight through the last instant of To.
type DateRange struct {
	From time.Time
	To   time.Time
}

func NewDateRange(from, to time.Time) *DateRange {
	return &DateRange{From: from, To: to}
}

// ParseDateRange reads YYYY-MM-DD bounds in loc. A single bound is used for
// both ends; no bound at all means no range.
func ParseDateRange(start, end string, loc *time.Location) (*DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if start == "" {
		start = end
	}
	if end == "" {
		end = start
	}
	from, err := time.ParseInLocation(dateLayout, start, loc)
	if err != nil {
		return nil, preconditionError("invalid start date %q", start)
	}
	to, err := time.ParseInLocation(dateLayout, end, loc)
	if err != nil {
		return nil, preconditionError("invalid end date %q", end)
	}
	if to.Before(from) {
		return nil, preconditionError("end date %s is before start date %s", end, start)
	}
	return &DateRange{From: from, To: to}, nil
}

func (d DateRange) Start() time.Time {
	y, m, day := d.From.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.From.Location())
}

// End is inclusive.
func (d DateRange) End() time.Time {
	y, m, day := d.To.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.From.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func (d DateRange) Contains(t time.Time) bool {
	return !t.Before(d.Start()) && !t.After(d.End())
}

func (d DateRange) StartDate() string { return d.Start().Format(dateLayout) }

func (d DateRange) EndDate() string { return d.End().Format(dateLayout) }

// Criteria are independent and conjunctive. Zero values disable a filter.
type Criteria struct {
	DateRange  *DateRange
	Status     string
	Step       string
	SearchTerm string
}

type Predicate func(models.ReconciliationRecord) bool

// Predicates returns one predicate per active criterion.
func (c Criteria) Predicates() []Predicate {
	var preds []Predicate
	if c.DateRange != nil {
		dr := *c.DateRange
		preds = append(preds, func(r models.ReconciliationRecord) bool {
			return dr.Contains(r.CreatedAt)
		})
	}
	if status := strings.TrimSpace(c.Status); status != "" && status != FilterAll {
		preds = append(preds, func(r models.ReconciliationRecord) bool {
			return string(r.Status) == status
		})
	}
	if step := strings.TrimSpace(c.Step); step != "" && step != FilterAll {
		preds = append(preds, func(r models.ReconciliationRecord) bool {
			return string(r.Step) == step
		})
	}
	if term := strings.TrimSpace(c.SearchTerm); term != "" {
		preds = append(preds, searchPredicate(term))
	}
	return preds
}

// Filter keeps the records matching every active criterion, in input order.
func Filter(records []models.ReconciliationRecord, c Criteria) []models.ReconciliationRecord {
	preds := c.Predicates()
	out := make([]models.ReconciliationRecord, 0, len(records))
	for _, r := range records {
		if matchesAll(r, preds) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r models.ReconciliationRecord, preds []Predicate) bool {
	for _, p := range preds {
		if !p(r) {
			return false
		}
	}
	return true
}

// searchPredicate matches a case-folded substring of id, userName, userId
// or txId.
func searchPredicate(term string) Predicate {
	// a Caser is stateful; this one is owned by the predicate
	folder := cases.Fold()
	needle := folder.String(term)
	return func(r models.ReconciliationRecord) bool {
		fields := []string{r.ID, r.UserName, r.UserID}
		if r.TxID != nil {
			fields = append(fields, *r.TxID)
		}
		for _, f := range fields {
			if f != "" && strings.Contains(folder.String(f), needle) {
				return true
			}
		}
		return false
	}
}
