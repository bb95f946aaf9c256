package output

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type row struct {
	Name    string        `json:"name"`
	Usable  bool          `json:"usable"`
	Latency time.Duration `json:"latency" table:"wide"`
	secret  string
	Hidden  string `table:"-"`
}

func render(t *testing.T, f *TableFormatter, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format: %v", err)
	}
	return buf.String()
}

func TestTableFormatter_Table(t *testing.T) {
	tbl := &Table{}
	tbl.SetHeaders("A", "B")
	tbl.AddRow("1", "2")

	if got := render(t, &TableFormatter{}, tbl); got != "A  B\n1  2\n" {
		t.Errorf("got %q", got)
	}
	if got := render(t, &TableFormatter{}, *tbl); got != "A  B\n1  2\n" {
		t.Errorf("value table got %q", got)
	}
	if got := render(t, &TableFormatter{NoHeaders: true}, tbl); got != "1  2\n" {
		t.Errorf("no headers got %q", got)
	}
}

func TestTableFormatter_Nil(t *testing.T) {
	if got := render(t, &TableFormatter{}, nil); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestTableFormatter_StructSlice(t *testing.T) {
	rows := []row{
		{Name: "localStorage", Usable: true, Latency: time.Millisecond, secret: "x", Hidden: "h"},
		{Name: "sessionStorage", Usable: false},
	}

	narrow := render(t, &TableFormatter{}, rows)
	if !strings.HasPrefix(narrow, "NAME") || strings.Contains(narrow, "LATENCY") {
		t.Errorf("narrow table:\n%s", narrow)
	}
	if strings.Contains(narrow, "HIDDEN") || strings.Contains(narrow, "SECRET") {
		t.Errorf("hidden columns rendered:\n%s", narrow)
	}

	wide := render(t, &TableFormatter{Wide: true}, rows)
	if !strings.Contains(wide, "LATENCY") || !strings.Contains(wide, "1ms") {
		t.Errorf("wide table:\n%s", wide)
	}

	ptrs := render(t, &TableFormatter{}, []*row{&rows[0]})
	if !strings.Contains(ptrs, "localStorage") {
		t.Errorf("pointer slice:\n%s", ptrs)
	}
}

func TestTableFormatter_EmptySlice(t *testing.T) {
	if got := render(t, &TableFormatter{}, []row{}); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestTableFormatter_MapSorted(t *testing.T) {
	data := map[string]any{
		"zeta":   1.5,
		"alpha":  "x",
		"layout": map[string]any{"w": 1},
		"tags":   []any{"a", "b"},
		"gone":   nil,
	}

	got := render(t, &TableFormatter{}, data)
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 6 {
		t.Fatalf("lines = %d:\n%s", len(lines), got)
	}

	var keys []string
	for _, l := range lines[1:] {
		keys = append(keys, strings.Fields(l)[0])
	}
	if want := []string{"alpha", "gone", "layout", "tags", "zeta"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	for _, want := range []string{`{"w":1}`, `["a","b"]`, "1.5"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in:\n%s", want, got)
		}
	}
}

func TestTableFormatter_SingleStruct(t *testing.T) {
	got := render(t, &TableFormatter{}, row{Name: "x", Usable: true})
	if !strings.HasPrefix(got, "FIELD") || !strings.Contains(got, "usable") || !strings.Contains(got, "true") {
		t.Errorf("got:\n%s", got)
	}
}

func TestTableFormatter_Scalar(t *testing.T) {
	if got := render(t, &TableFormatter{}, 42); got != "42\n" {
		t.Errorf("got %q", got)
	}
	if got := render(t, &TableFormatter{}, "dark"); got != "dark\n" {
		t.Errorf("got %q", got)
	}
}

func TestFormatValue(t *testing.T) {
	s := "ptr"
	var nilPtr *string
	var iface any = 3

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hi", "hi"},
		{"empty string", "", "-"},
		{"int", -4, "-4"},
		{"uint", uint8(7), "7"},
		{"float", 0.25, "0.25"},
		{"whole float", 2.0, "2"},
		{"bool", false, "false"},
		{"pointer", &s, "ptr"},
		{"nil pointer", nilPtr, "-"},
		{"interface", iface, "3"},
		{"duration", 1500 * time.Millisecond, "1.5s"},
		{"zero time", time.Time{}, "-"},
		{"time", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "2026-01-02 03:04:05"},
		{"error", errors.New("boom"), "boom"},
		{"slice", []int{1, 2}, "[1,2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(reflect.ValueOf(tt.in)); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := formatValue(reflect.Value{}); got != "-" {
		t.Errorf("invalid value = %q", got)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"name":          "name",
		"KeyPrefix":     "Key_Prefix",
		"debounceDelay": "debounce_Delay",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
