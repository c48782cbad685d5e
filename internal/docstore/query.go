package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ---- in-process evaluation (memory driver) ----

func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if at, err := time.Parse(time.RFC3339Nano, av); err == nil {
			if bt, err := time.Parse(time.RFC3339Nano, bv); err == nil {
				return at.Compare(bt), true
			}
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 0, false
		}
		return 0, true
	case nil:
		return 0, b == nil
	default:
		if reflect.DeepEqual(a, b) {
			return 0, true
		}
		return 0, false
	}
}

func matchFilter(fields map[string]any, f Filter, want any) bool {
	got, ok := fields[f.Field]
	if !ok {
		return false
	}
	if f.Op == OpArrayContains {
		arr, ok := got.([]any)
		if !ok {
			return false
		}
		for _, el := range arr {
			if c, ok := compareValues(el, want); ok && c == 0 {
				return true
			}
		}
		return false
	}
	c, ok := compareValues(got, want)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

type candidate struct {
	snap   Snapshot
	fields map[string]any
}

// evaluate filters, orders and limits candidates. Filter values are
// normalized once up front.
func evaluate(q Query, docs []candidate) ([]Snapshot, error) {
	wants := make([]any, len(q.Filters))
	for i, f := range q.Filters {
		w, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %s: %v", ErrInvalidQuery, f.Field, err)
		}
		wants[i] = w
	}

	matched := make([]candidate, 0, len(docs))
next:
	for _, d := range docs {
		for i, f := range q.Filters {
			if !matchFilter(d.fields, f, wants[i]) {
				continue next
			}
		}
		if q.OrderBy != "" {
			if _, ok := d.fields[q.OrderBy]; !ok {
				continue
			}
		}
		matched = append(matched, d)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			c, _ := compareValues(matched[i].fields[q.OrderBy], matched[j].fields[q.OrderBy])
			if c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return lessID(matched[i].snap.ID, matched[j].snap.ID)
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]Snapshot, len(matched))
	for i, m := range matched {
		out[i] = m.snap
	}
	return out, nil
}

// lessID puts numeric ids first, in numeric order, then the rest lexically.
func lessID(a, b string) bool {
	ad, bd := isDigits(a), isDigits(b)
	switch {
	case ad && !bd:
		return true
	case !ad && bd:
		return false
	case ad && bd && len(a) != len(b):
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ---- SQL rendering (postgres driver) ----

const idOrder = "CASE WHEN id ~ '^[0-9]+$' THEN length(id) END NULLS LAST, id"

// buildSelect renders q against the documents table. Every user value goes
// through a placeholder; field names are additionally restricted by validate.
func buildSelect(q Query, forUpdate bool) (string, []any, error) {
	if err := q.validate(); err != nil {
		return "", nil, err
	}
	args := []any{q.Collection}
	where := []string{"collection = $1"}

	for _, f := range q.Filters {
		cond, fargs, err := filterSQL(f, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		where = append(where, cond)
		args = append(args, fargs...)
	}

	order := idOrder
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		k := len(args)
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		where = append(where, fmt.Sprintf("data ? $%d::text", k))
		order = fmt.Sprintf(
			"CASE WHEN jsonb_typeof(data->$%[1]d::text) = 'string' AND data->>$%[1]d::text ~ '^\\d{4}-\\d{2}-\\d{2}T' "+
				"THEN (data->>$%[1]d::text)::timestamptz END %[2]s NULLS LAST, data->$%[1]d::text %[2]s, %[3]s",
			k, dir, idOrder)
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, data, version, updated_at FROM documents WHERE ")
	sb.WriteString(strings.Join(where, " AND "))
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	if forUpdate {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String(), args, nil
}

func sqlOp(op Op) string {
	if op == OpEq {
		return "="
	}
	return string(op)
}

func filterSQL(f Filter, n int) (string, []any, error) {
	key, val := n, n+1
	if f.Op == OpArrayContains {
		raw, err := json.Marshal([]any{f.Value})
		if err != nil {
			return "", nil, fmt.Errorf("%w: filter %s: %v", ErrInvalidQuery, f.Field, err)
		}
		return fmt.Sprintf("data->$%d::text @> $%d::jsonb", key, val), []any{f.Field, string(raw)}, nil
	}

	op := sqlOp(f.Op)
	switch v := f.Value.(type) {
	case time.Time:
		return fmt.Sprintf("(data->>$%d::text)::timestamptz %s $%d::timestamptz", key, op, val),
			[]any{f.Field, v}, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("CASE WHEN jsonb_typeof(data->$%[1]d::text) = 'number' THEN (data->>$%[1]d::text)::numeric END %[2]s $%[3]d::numeric",
			key, op, val), []any{f.Field, v}, nil
	case string:
		return fmt.Sprintf("data->>$%d::text %s $%d::text", key, op, val), []any{f.Field, v}, nil
	case bool:
		if f.Op != OpEq {
			return "", nil, fmt.Errorf("%w: %s on bool field %s", ErrInvalidQuery, f.Op, f.Field)
		}
		return fmt.Sprintf("data->$%d::text = to_jsonb($%d::boolean)", key, val), []any{f.Field, v}, nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported value %T for %s", ErrInvalidQuery, f.Value, f.Field)
	}
}
