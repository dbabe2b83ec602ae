package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/theimaginaryfoundation/review-sentiment/review"
)

const (
	typeDatetime = "datetime"
	typeTable    = "table"
)

// Record is one cached aggregate.
type Record struct {
	Fingerprint string
	Subject     string
	SampleSize  int
	WrittenAt   time.Time
	Result      review.AggregateResult
}

// datetimeValue tags a timestamp so it is not read back as a plain string.
type datetimeValue struct {
	Type  string `json:"_type"`
	Value string `json:"value"`
}

func newDatetime(t time.Time) datetimeValue {
	return datetimeValue{Type: typeDatetime, Value: t.UTC().Format(time.RFC3339Nano)}
}

func (d datetimeValue) time() (time.Time, error) {
	if d.Type != typeDatetime {
		return time.Time{}, fmt.Errorf("expected %s wrapper, got %q", typeDatetime, d.Type)
	}
	return time.Parse(time.RFC3339Nano, d.Value)
}

// tableValue stores a row collection column-wise; each cell is the JSON of one field.
type tableValue struct {
	Type    string              `json:"_type"`
	Columns []string            `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

type memberColumn struct {
	name  string
	field func(r *review.MemberRow) any
}

var memberColumns = []memberColumn{
	{"name", func(r *review.MemberRow) any { return &r.Name }},
	{"link", func(r *review.MemberRow) any { return &r.Link }},
	{"postdate", func(r *review.MemberRow) any { return &r.PostDate }},
	{"season", func(r *review.MemberRow) any { return &r.Season }},
	{"documents", func(r *review.MemberRow) any { return &r.Documents }},
	{"totals", func(r *review.MemberRow) any { return &r.Totals }},
	{"sentiment_index", func(r *review.MemberRow) any { return &r.Index }},
	{"positive_pct", func(r *review.MemberRow) any { return &r.PositivePct }},
	{"negative_pct", func(r *review.MemberRow) any { return &r.NegativePct }},
	{"judgments", func(r *review.MemberRow) any { return &r.Judgments }},
}

func encodeMembers(rows []review.MemberRow) (tableValue, error) {
	t := tableValue{Type: typeTable, Columns: make([]string, len(memberColumns)), Rows: make([][]json.RawMessage, 0, len(rows))}
	for i, c := range memberColumns {
		t.Columns[i] = c.name
	}
	for i := range rows {
		cells := make([]json.RawMessage, len(memberColumns))
		for j, c := range memberColumns {
			b, err := json.Marshal(c.field(&rows[i]))
			if err != nil {
				return tableValue{}, fmt.Errorf("row %d column %s: %w", i, c.name, err)
			}
			cells[j] = b
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

func decodeMembers(t tableValue) ([]review.MemberRow, error) {
	if t.Type != typeTable {
		return nil, fmt.Errorf("expected %s wrapper, got %q", typeTable, t.Type)
	}
	byName := make(map[string]memberColumn, len(memberColumns))
	for _, c := range memberColumns {
		byName[c.name] = c
	}
	if len(t.Rows) == 0 {
		return nil, nil
	}
	out := make([]review.MemberRow, len(t.Rows))
	for i, cells := range t.Rows {
		if len(cells) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d cells for %d columns", i, len(cells), len(t.Columns))
		}
		for j, name := range t.Columns {
			c, ok := byName[name]
			if !ok {
				continue
			}
			if err := json.Unmarshal(cells[j], c.field(&out[i])); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, name, err)
			}
		}
	}
	return out, nil
}

type resultFields review.AggregateResult

// resultWire is AggregateResult with the member table and timestamp replaced by typed wrappers.
// The outer fields shadow the embedded ones of the same JSON name.
type resultWire struct {
	resultFields
	Members     tableValue    `json:"members"`
	GeneratedAt datetimeValue `json:"generated_at"`
}

type recordWire struct {
	Fingerprint string        `json:"fingerprint"`
	Subject     string        `json:"subject"`
	SampleSize  int           `json:"sample_size"`
	WrittenAt   datetimeValue `json:"written_at"`
	Payload     resultWire    `json:"payload"`
}

// EncodeRecord serializes rec with typed wrappers for the timestamps and the member table.
func EncodeRecord(rec Record) ([]byte, error) {
	members, err := encodeMembers(rec.Result.Members)
	if err != nil {
		return nil, fmt.Errorf("EncodeRecord: members: %w", err)
	}
	w := recordWire{
		Fingerprint: rec.Fingerprint,
		Subject:     rec.Subject,
		SampleSize:  rec.SampleSize,
		WrittenAt:   newDatetime(rec.WrittenAt),
		Payload: resultWire{
			resultFields: resultFields(rec.Result),
			Members:      members,
			GeneratedAt:  newDatetime(rec.Result.GeneratedAt),
		},
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("EncodeRecord: %w", err)
	}
	return b, nil
}

// DecodeRecord reverses EncodeRecord. Every failure wraps ErrCorrupt.
func DecodeRecord(data []byte) (Record, error) {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	writtenAt, err := w.WrittenAt.time()
	if err != nil {
		return Record{}, fmt.Errorf("%w: written_at: %v", ErrCorrupt, err)
	}
	generatedAt, err := w.Payload.GeneratedAt.time()
	if err != nil {
		return Record{}, fmt.Errorf("%w: generated_at: %v", ErrCorrupt, err)
	}
	members, err := decodeMembers(w.Payload.Members)
	if err != nil {
		return Record{}, fmt.Errorf("%w: members: %v", ErrCorrupt, err)
	}

	result := review.AggregateResult(w.Payload.resultFields)
	result.Members = members
	result.GeneratedAt = generatedAt
	return Record{
		Fingerprint: w.Fingerprint,
		Subject:     w.Subject,
		SampleSize:  w.SampleSize,
		WrittenAt:   writtenAt,
		Result:      result,
	}, nil
}
