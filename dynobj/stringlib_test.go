package dynobj

import (
	"testing"

	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/pool"
)

func TestStringLib_DerivedStrings(t *testing.T) {
	e := newTestEnv(t, nil, 0)
	lib := e.lib
	src := e.str(t, "Héllo World")
	other := e.str(t, "!")
	world := e.str(t, "WORLD")
	planet := e.str(t, "Planet")

	tests := []struct {
		name string
		op   func() (pool.Handle, error)
		want string
	}{
		{"Copy", func() (pool.Handle, error) { return lib.Copy(src) }, "Héllo World"},
		{"Append", func() (pool.Handle, error) { return lib.Append(src, other) }, "Héllo World!"},
		{"AppendChar", func() (pool.Handle, error) { return lib.AppendChar(src, 'ß') }, "Héllo Worldß"},
		{"ReplaceCharAt", func() (pool.Handle, error) { return lib.ReplaceCharAt(src, 1, 'e') }, "Hello World"},
		{"Truncate", func() (pool.Handle, error) { return lib.Truncate(src, 2) }, "Hé"},
		{"TruncateLonger", func() (pool.Handle, error) { return lib.Truncate(src, 100) }, "Héllo World"},
		{"Substring", func() (pool.Handle, error) { return lib.Substring(src, 1, 4) }, "éllo"},
		{"SubstringClamped", func() (pool.Handle, error) { return lib.Substring(src, 6, 100) }, "World"},
		{"SubstringAtEnd", func() (pool.Handle, error) { return lib.Substring(src, 11, 3) }, ""},
		{"ReplaceFold", func() (pool.Handle, error) { return lib.Replace(src, world, planet, false) }, "Héllo Planet"},
		{"ReplaceExact", func() (pool.Handle, error) { return lib.Replace(src, world, planet, true) }, "Héllo World"},
		{"LowerCase", func() (pool.Handle, error) { return lib.LowerCase(src) }, "héllo world"},
		{"UpperCase", func() (pool.Handle, error) { return lib.UpperCase(src) }, "HÉLLO WORLD"},
		{"Format", func() (pool.Handle, error) { return lib.Format("%s=%d", StringArg("x"), IntArg(5)) }, "x=5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.op()
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if h == src {
				t.Fatal("result reuses the source handle")
			}
			if got := e.text(t, h); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
			}
			if got := e.text(t, src); got != "Héllo World" {
				t.Errorf("source changed to %q", got)
			}
		})
	}
}

func TestStringLib_Queries(t *testing.T) {
	e := newTestEnv(t, nil, 0)
	lib := e.lib
	s := e.str(t, "Héllo World")

	if n, _ := lib.Length(s); n != 11 {
		t.Errorf("Length = %d, want 11", n)
	}
	if c, _ := lib.GetChars(s, 1); c != 'é' {
		t.Errorf("GetChars(1) = %q", c)
	}
	if c, _ := lib.GetChars(s, 11); c != 0 {
		t.Errorf("GetChars past end = %q, want 0", c)
	}
	if i, _ := lib.IndexOf(s, e.str(t, "WOR")); i != 6 {
		t.Errorf("IndexOf = %d, want 6", i)
	}
	if i, _ := lib.IndexOf(s, e.str(t, "xyz")); i != -1 {
		t.Errorf("IndexOf missing = %d, want -1", i)
	}
	if i, _ := lib.IndexOf(s, e.str(t, "")); i != 0 {
		t.Errorf("IndexOf empty = %d, want 0", i)
	}
	if ok, _ := lib.StartsWith(s, e.str(t, "hÉl"), false); !ok {
		t.Error("StartsWith case-insensitive failed")
	}
	if ok, _ := lib.StartsWith(s, e.str(t, "hÉl"), true); ok {
		t.Error("StartsWith case-sensitive matched")
	}
	if ok, _ := lib.EndsWith(s, e.str(t, "world"), false); !ok {
		t.Error("EndsWith case-insensitive failed")
	}
	if c, _ := lib.CompareTo(e.str(t, "abc"), e.str(t, "ABD"), false); c >= 0 {
		t.Errorf("CompareTo = %d, want negative", c)
	}
	if c, _ := lib.CompareTo(e.str(t, "abc"), e.str(t, "ABC"), false); c != 0 {
		t.Errorf("CompareTo folded = %d, want 0", c)
	}
	if c, _ := lib.CompareTo(e.str(t, "abc"), e.str(t, "ABC"), true); c <= 0 {
		t.Errorf("CompareTo exact = %d, want positive", c)
	}
	if ok, _ := lib.IsNullOrEmpty(0); !ok {
		t.Error("IsNullOrEmpty(null) = false")
	}
	if ok, _ := lib.IsNullOrEmpty(e.str(t, "")); !ok {
		t.Error("IsNullOrEmpty(\"\") = false")
	}
	if ok, _ := lib.IsNullOrEmpty(s); ok {
		t.Error("IsNullOrEmpty(text) = true")
	}
}

func TestStringLib_Numbers(t *testing.T) {
	e := newTestEnv(t, nil, 0)
	ints := map[string]int32{"42": 42, "  -17abc": -17, "+8": 8, "abc": 0, "": 0}
	for in, want := range ints {
		if got, _ := e.lib.ToInt(e.str(t, in)); got != want {
			t.Errorf("ToInt(%q) = %d, want %d", in, got, want)
		}
	}
	floats := map[string]float32{"1.5": 1.5, " -2.25x": -2.25, "3e2": 300, "1e": 1, ".": 0, "abc": 0}
	for in, want := range floats {
		if got, _ := e.lib.ToFloat(e.str(t, in)); got != want {
			t.Errorf("ToFloat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStringLib_Errors(t *testing.T) {
	e := newTestEnv(t, nil, 0)
	s := e.str(t, "abc")

	if _, err := e.lib.ReplaceCharAt(s, 3, 'x'); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("ReplaceCharAt past end: %v", err)
	}
	if _, err := e.lib.Substring(s, 4, 1); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("Substring past end: %v", err)
	}
	if _, err := e.lib.Substring(s, 0, -1); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("Substring negative length: %v", err)
	}
	if _, err := e.lib.Truncate(s, -1); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("Truncate negative length: %v", err)
	}
	if _, err := e.lib.Copy(0); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("Copy(null): %v", err)
	}
	if _, err := e.lib.Copy(9999); !errors.IsKind(err, errors.KindInvalidHandle) {
		t.Errorf("Copy(invalid): %v", err)
	}
	arr, _ := e.mgrs.Arrays.CreateOld(1, 4, false)
	if _, err := e.lib.Copy(arr.Handle); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("Copy(array): %v", err)
	}
}

func TestStringLib_Legacy(t *testing.T) {
	e := newTestEnv(t, nil, 0)
	lib := NewStringLib(e.mgrs.Strings, TextLegacy)
	// "caf\xe9" is "café" in Windows-1252
	s := e.str(t, "caf\xe9")

	if n, _ := lib.Length(s); n != 4 {
		t.Errorf("Length = %d, want 4", n)
	}
	if c, _ := lib.GetChars(s, 3); c != 0xe9 {
		t.Errorf("GetChars(3) = %#x, want 0xe9", c)
	}
	up, err := lib.UpperCase(s)
	if err != nil {
		t.Fatalf("UpperCase: %v", err)
	}
	if got := e.text(t, up); got != "CAF\xc9" {
		t.Errorf("UpperCase = %q, want %q", got, "CAF\xc9")
	}
	euro, _ := lib.AppendChar(s, '€')
	if got := e.text(t, euro); got != "caf\xe9\x80" {
		t.Errorf("AppendChar(€) = %q", got)
	}
	bad, _ := lib.AppendChar(s, '世')
	if got := e.text(t, bad); got != "caf\xe9?" {
		t.Errorf("AppendChar(unencodable) = %q", got)
	}
	if i, _ := lib.IndexOf(s, e.str(t, "\xc9")); i != 3 {
		t.Errorf("IndexOf folded legacy = %d, want 3", i)
	}
}

func TestParseTextMode(t *testing.T) {
	for in, want := range map[string]TextMode{"": TextUTF8, "UTF8": TextUTF8, "legacy": TextLegacy} {
		got, err := ParseTextMode(in)
		if err != nil || got != want {
			t.Errorf("ParseTextMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseTextMode("ebcdic"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
