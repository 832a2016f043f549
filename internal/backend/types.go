package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Record is one prediction row. Columns keeps the backend's key order.
type Record struct {
	Columns []string
	Values  map[string]any
}

// NewRecord builds a record from alternating column/value pairs.
func NewRecord(kv ...any) Record {
	r := Record{Values: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		col := fmt.Sprint(kv[i])
		if _, dup := r.Values[col]; !dup {
			r.Columns = append(r.Columns, col)
		}
		r.Values[col] = kv[i+1]
	}
	return r
}

// Get returns the raw value stored for col.
func (r Record) Get(col string) (any, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// Text returns the display form of col, or "" when absent.
func (r Record) Text(col string) string {
	v, ok := r.Values[col]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// FormatValue renders a decoded JSON value the way it is shown to users.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// MarshalJSON writes the record as an object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return errors.New("record: invalid json")
	}
	rec, err := parseRecord(gjson.ParseBytes(b))
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func parseRecord(res gjson.Result) (Record, error) {
	if !res.IsObject() {
		return Record{}, fmt.Errorf("record: expected object, got %s", res.Type)
	}
	rec := Record{Values: map[string]any{}}
	res.ForEach(func(key, value gjson.Result) bool {
		col := key.String()
		if _, dup := rec.Values[col]; !dup {
			rec.Columns = append(rec.Columns, col)
		}
		rec.Values[col] = value.Value()
		return true
	})
	return rec, nil
}

func parseRecords(res gjson.Result) ([]Record, error) {
	if !res.IsArray() {
		return nil, fmt.Errorf("expected array of records, got %s", res.Type)
	}
	items := res.Array()
	out := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := parseRecord(item)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Summary is the backend's EDA snapshot for the current slice of data.
type Summary struct {
	Numeric     []NumericSummary
	Categorical []CategoricalSummary
}

// NumericSummary holds the five-point breakdown of one numeric column.
// A nil pointer means the backend reported null.
type NumericSummary struct {
	Column string
	Min    *float64
	P25    *float64
	P50    *float64
	P75    *float64
	Max    *float64
}

// CategoricalSummary holds the top category counts of one column in backend order.
type CategoricalSummary struct {
	Column string
	Top    []CategoryCount
}

type CategoryCount struct {
	Category string
	Count    float64
}

// Empty reports whether the snapshot carries no columns at all.
func (s Summary) Empty() bool {
	return len(s.Numeric) == 0 && len(s.Categorical) == 0
}

// numeric stat keys as produced by pandas describe()
const (
	statMin = "min"
	statP25 = "25%"
	statP50 = "50%"
	statP75 = "75%"
	statMax = "max"
)

func parseSummary(res gjson.Result) (Summary, error) {
	var s Summary
	if !res.Exists() || res.Type == gjson.Null {
		return s, nil
	}
	if !res.IsObject() {
		return s, fmt.Errorf("eda_preview: expected object, got %s", res.Type)
	}
	num := res.Get("numeric_summary")
	if num.Exists() && num.Type != gjson.Null {
		if !num.IsObject() {
			return s, fmt.Errorf("numeric_summary: expected object, got %s", num.Type)
		}
		var perr error
		num.ForEach(func(col, stats gjson.Result) bool {
			if !stats.IsObject() {
				perr = fmt.Errorf("numeric_summary.%s: expected object", col.String())
				return false
			}
			ns := NumericSummary{Column: col.String()}
			stats.ForEach(func(k, v gjson.Result) bool {
				var dst **float64
				switch k.String() {
				case statMin:
					dst = &ns.Min
				case statP25:
					dst = &ns.P25
				case statP50:
					dst = &ns.P50
				case statP75:
					dst = &ns.P75
				case statMax:
					dst = &ns.Max
				default:
					return true
				}
				if v.Type == gjson.Number {
					f := v.Float()
					*dst = &f
				}
				return true
			})
			s.Numeric = append(s.Numeric, ns)
			return true
		})
		if perr != nil {
			return Summary{}, perr
		}
	}
	cat := res.Get("top_categories")
	if cat.Exists() && cat.Type != gjson.Null {
		if !cat.IsObject() {
			return s, fmt.Errorf("top_categories: expected object, got %s", cat.Type)
		}
		var perr error
		cat.ForEach(func(col, counts gjson.Result) bool {
			if !counts.IsObject() {
				perr = fmt.Errorf("top_categories.%s: expected object", col.String())
				return false
			}
			cs := CategoricalSummary{Column: col.String()}
			counts.ForEach(func(k, v gjson.Result) bool {
				cs.Top = append(cs.Top, CategoryCount{Category: k.String(), Count: v.Float()})
				return true
			})
			s.Categorical = append(s.Categorical, cs)
			return true
		})
		if perr != nil {
			return Summary{}, perr
		}
	}
	return s, nil
}

// MarshalJSON writes the snapshot back in the backend's wire shape, preserving order.
func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"numeric_summary":{`)
	for i, ns := range s.Numeric {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, ns.Column)
		buf.WriteByte('{')
		stats := []struct {
			key string
			val *float64
		}{{statMin, ns.Min}, {statP25, ns.P25}, {statP50, ns.P50}, {statP75, ns.P75}, {statMax, ns.Max}}
		for j, st := range stats {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, st.key)
			if st.val == nil {
				buf.WriteString("null")
				continue
			}
			buf.WriteString(strconv.FormatFloat(*st.val, 'g', -1, 64))
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`},"top_categories":{`)
	for i, cs := range s.Categorical {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, cs.Column)
		buf.WriteByte('{')
		for j, cc := range cs.Top {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, cc.Category)
			buf.WriteString(strconv.FormatFloat(cc.Count, 'g', -1, 64))
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

func (s *Summary) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return errors.New("summary: invalid json")
	}
	parsed, err := parseSummary(gjson.ParseBytes(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func writeKey(buf *bytes.Buffer, k string) {
	b, _ := json.Marshal(k)
	buf.Write(b)
	buf.WriteByte(':')
}

// UploadResult is the response of POST /api/predict_csv.
type UploadResult struct {
	Preview []Record
	Summary Summary
	// TotalRows is nil when the backend omitted total_rows.
	TotalRows *int
}

// ChunkResult is the response of POST /api/get_chunk.
type ChunkResult struct {
	Rows    []Record
	Summary Summary
	// Page is the page index the backend says it served.
	Page int
}

// DatasetInfo is the response of GET /api/eda.
type DatasetInfo struct {
	Rows        int      `json:"rows"`
	Columns     int      `json:"columns"`
	ColumnNames []string `json:"column_names"`
}

func decodeUpload(body []byte) (*UploadResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("expected object, got %s", root.Type)
	}
	preview, err := parseRecords(root.Get("preview"))
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	summary, err := parseSummary(root.Get("eda_preview"))
	if err != nil {
		return nil, err
	}
	out := &UploadResult{Preview: preview, Summary: summary}
	if tr := root.Get("total_rows"); tr.Type == gjson.Number {
		n := int(tr.Int())
		out.TotalRows = &n
	}
	return out, nil
}

func decodeChunk(body []byte) (*ChunkResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("expected object, got %s", root.Type)
	}
	rows, err := parseRecords(root.Get("rows"))
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	summary, err := parseSummary(root.Get("eda_preview"))
	if err != nil {
		return nil, err
	}
	page := root.Get("page")
	if page.Type != gjson.Number {
		return nil, errors.New("page: missing from response")
	}
	return &ChunkResult{Rows: rows, Summary: summary, Page: int(page.Int())}, nil
}
