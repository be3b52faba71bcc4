package dynobj

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"

	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/pool"
)

// TextMode selects how string bytes map to characters.
type TextMode uint8

const (
	// TextUTF8 treats strings as UTF-8; indexes count code points.
	TextUTF8 TextMode = iota
	// TextLegacy treats every byte as one Windows-1252 character.
	TextLegacy
)

func (m TextMode) String() string {
	if m == TextLegacy {
		return "legacy"
	}
	return "utf8"
}

// MarshalText implements encoding.TextMarshaler.
func (m TextMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *TextMode) UnmarshalText(b []byte) error {
	v, err := ParseTextMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseTextMode accepts "utf8" and "legacy".
func ParseTextMode(s string) (TextMode, error) {
	switch strings.ToLower(s) {
	case "", "utf8", "utf-8":
		return TextUTF8, nil
	case "legacy", "ascii", "windows-1252":
		return TextLegacy, nil
	}
	return 0, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Value(s).Detail("unknown text mode %q", s).Build()
}

var legacyCharset = charmap.Windows1252

// StringLib is the script string API. Every method that yields text
// creates a new string object and returns its handle; the reference count
// of the result is zero, as for any newly created object.
type StringLib struct {
	strs   *Strings
	upper  cases.Caser
	lower  cases.Caser
	mode   TextMode
	bufLen int
}

// NewStringLib returns the string API over strs.
func NewStringLib(strs *Strings, mode TextMode) *StringLib {
	return &StringLib{
		strs:   strs,
		mode:   mode,
		upper:  cases.Upper(language.Und),
		lower:  cases.Lower(language.Und),
		bufLen: DefaultFormatBuffer,
	}
}

// SetFormatBuffer sets the output limit of Format, including the
// terminator. n <= 0 removes the limit.
func (l *StringLib) SetFormatBuffer(n int) {
	l.bufLen = n
}

// Mode returns the text mode.
func (l *StringLib) Mode() TextMode {
	return l.mode
}

// text resolves a non-null string handle.
func (l *StringLib) text(h pool.Handle, op string) (string, error) {
	s, ok, err := l.strs.TextOf(h)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(errors.PhaseString, errors.KindInvalidInput).
			Path(op).Detail("null string").Build()
	}
	return s, nil
}

func (l *StringLib) create(s string) (pool.Handle, error) {
	ref, err := l.strs.Create(s)
	return ref.Handle, err
}

// decode splits s into characters and returns their values and the byte
// offset each one starts at, plus len(s) as a final offset.
func (l *StringLib) decode(s string) ([]rune, []int) {
	if l.mode == TextLegacy {
		chars := make([]rune, len(s))
		offs := make([]int, len(s)+1)
		for i := 0; i < len(s); i++ {
			chars[i] = legacyCharset.DecodeByte(s[i])
			offs[i] = i
		}
		offs[len(s)] = len(s)
		return chars, offs
	}
	chars := make([]rune, 0, len(s))
	offs := make([]int, 0, len(s)+1)
	for i, r := range s {
		chars = append(chars, r)
		offs = append(offs, i)
	}
	return chars, append(offs, len(s))
}

// encode turns one character value into bytes for the current mode.
func (l *StringLib) encode(c rune) []byte {
	if l.mode == TextLegacy {
		if c >= 0 && c < 0x80 {
			return []byte{byte(c)}
		}
		if b, ok := legacyCharset.EncodeRune(c); ok {
			return []byte{b}
		}
		if c >= 0 && c < 0x100 {
			return []byte{byte(c)}
		}
		return []byte{'?'}
	}
	return utf8.AppendRune(nil, c)
}

func (l *StringLib) fold(chars []rune) []rune {
	out := make([]rune, len(chars))
	for i, c := range chars {
		out[i] = unicode.ToLower(c)
	}
	return out
}

// Length returns the number of characters.
func (l *StringLib) Length(h pool.Handle) (int, error) {
	s, err := l.text(h, "Length")
	if err != nil {
		return 0, err
	}
	if l.mode == TextLegacy {
		return len(s), nil
	}
	return utf8.RuneCountInString(s), nil
}

// IsNullOrEmpty reports whether h is null or an empty string.
func (l *StringLib) IsNullOrEmpty(h pool.Handle) (bool, error) {
	s, ok, err := l.strs.TextOf(h)
	if err != nil {
		return false, err
	}
	return !ok || s == "", nil
}

// Copy returns a new string with the same text.
func (l *StringLib) Copy(h pool.Handle) (pool.Handle, error) {
	s, err := l.text(h, "Copy")
	if err != nil {
		return 0, err
	}
	return l.create(s)
}

// Append returns h followed by other.
func (l *StringLib) Append(h, other pool.Handle) (pool.Handle, error) {
	s, err := l.text(h, "Append")
	if err != nil {
		return 0, err
	}
	extra, err := l.text(other, "Append")
	if err != nil {
		return 0, err
	}
	return l.create(s + extra)
}

// AppendChar returns h followed by one character.
func (l *StringLib) AppendChar(h pool.Handle, c rune) (pool.Handle, error) {
	s, err := l.text(h, "AppendChar")
	if err != nil {
		return 0, err
	}
	return l.create(s + string(l.encode(c)))
}

// ReplaceCharAt returns h with the character at index replaced.
func (l *StringLib) ReplaceCharAt(h pool.Handle, index int, c rune) (pool.Handle, error) {
	s, err := l.text(h, "ReplaceCharAt")
	if err != nil {
		return 0, err
	}
	chars, offs := l.decode(s)
	if index < 0 || index >= len(chars) {
		return 0, errors.OutOfBounds(errors.PhaseString, []string{"ReplaceCharAt"}, index, len(chars))
	}
	var b strings.Builder
	b.WriteString(s[:offs[index]])
	b.Write(l.encode(c))
	b.WriteString(s[offs[index+1]:])
	return l.create(b.String())
}

// Truncate returns the first length characters of h.
func (l *StringLib) Truncate(h pool.Handle, length int) (pool.Handle, error) {
	s, err := l.text(h, "Truncate")
	if err != nil {
		return 0, err
	}
	if length < 0 {
		return 0, errors.New(errors.PhaseString, errors.KindInvalidInput).
			Path("Truncate").Value(length).Detail("invalid length").Build()
	}
	chars, offs := l.decode(s)
	if length >= len(chars) {
		return l.create(s)
	}
	return l.create(s[:offs[length]])
}

// Substring returns up to length characters starting at index. index may
// equal the string length, which yields an empty string.
func (l *StringLib) Substring(h pool.Handle, index, length int) (pool.Handle, error) {
	s, err := l.text(h, "Substring")
	if err != nil {
		return 0, err
	}
	if length < 0 {
		return 0, errors.New(errors.PhaseString, errors.KindInvalidInput).
			Path("Substring").Value(length).Detail("invalid length").Build()
	}
	chars, offs := l.decode(s)
	if index < 0 || index > len(chars) {
		return 0, errors.OutOfBounds(errors.PhaseString, []string{"Substring"}, index, len(chars))
	}
	end := index + min(length, len(chars)-index)
	return l.create(s[offs[index]:offs[end]])
}

// CompareTo orders h against other: negative, zero or positive.
func (l *StringLib) CompareTo(h, other pool.Handle, caseSensitive bool) (int, error) {
	a, err := l.text(h, "CompareTo")
	if err != nil {
		return 0, err
	}
	b, err := l.text(other, "CompareTo")
	if err != nil {
		return 0, err
	}
	if caseSensitive {
		return strings.Compare(a, b), nil
	}
	ac, _ := l.decode(a)
	bc, _ := l.decode(b)
	return compareRunes(l.fold(ac), l.fold(bc)), nil
}

func compareRunes(a, b []rune) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func hasPrefixRunes(s, prefix []rune) bool {
	return len(prefix) <= len(s) && compareRunes(s[:len(prefix)], prefix) == 0
}

// StartsWith reports whether h begins with prefix.
func (l *StringLib) StartsWith(h, prefix pool.Handle, caseSensitive bool) (bool, error) {
	s, err := l.text(h, "StartsWith")
	if err != nil {
		return false, err
	}
	p, err := l.text(prefix, "StartsWith")
	if err != nil {
		return false, err
	}
	if caseSensitive {
		return strings.HasPrefix(s, p), nil
	}
	sc, _ := l.decode(s)
	pc, _ := l.decode(p)
	return hasPrefixRunes(l.fold(sc), l.fold(pc)), nil
}

// EndsWith reports whether h ends with suffix.
func (l *StringLib) EndsWith(h, suffix pool.Handle, caseSensitive bool) (bool, error) {
	s, err := l.text(h, "EndsWith")
	if err != nil {
		return false, err
	}
	x, err := l.text(suffix, "EndsWith")
	if err != nil {
		return false, err
	}
	if caseSensitive {
		return strings.HasSuffix(s, x), nil
	}
	sc, _ := l.decode(s)
	xc, _ := l.decode(x)
	if len(xc) > len(sc) {
		return false, nil
	}
	return compareRunes(l.fold(sc[len(sc)-len(xc):]), l.fold(xc)) == 0, nil
}

// IndexOf returns the character index of the first case-insensitive
// occurrence of needle in h, or -1.
func (l *StringLib) IndexOf(h, needle pool.Handle) (int, error) {
	s, err := l.text(h, "IndexOf")
	if err != nil {
		return 0, err
	}
	n, err := l.text(needle, "IndexOf")
	if err != nil {
		return 0, err
	}
	sc, _ := l.decode(s)
	nc, _ := l.decode(n)
	return indexRunes(l.fold(sc), l.fold(nc)), nil
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if hasPrefixRunes(s[i:], sub) {
			return i
		}
	}
	return -1
}

// Replace returns h with every occurrence of old replaced by repl.
// An empty old leaves the text unchanged.
func (l *StringLib) Replace(h, old, repl pool.Handle, caseSensitive bool) (pool.Handle, error) {
	s, err := l.text(h, "Replace")
	if err != nil {
		return 0, err
	}
	o, err := l.text(old, "Replace")
	if err != nil {
		return 0, err
	}
	r, err := l.text(repl, "Replace")
	if err != nil {
		return 0, err
	}
	if o == "" {
		return l.create(s)
	}
	if caseSensitive {
		return l.create(strings.ReplaceAll(s, o, r))
	}

	chars, offs := l.decode(s)
	folded := l.fold(chars)
	oc, _ := l.decode(o)
	of := l.fold(oc)
	var b strings.Builder
	for i := 0; i < len(chars); {
		if hasPrefixRunes(folded[i:], of) {
			b.WriteString(r)
			i += len(of)
			continue
		}
		b.WriteString(s[offs[i]:offs[i+1]])
		i++
	}
	return l.create(b.String())
}

// LowerCase returns h in lower case.
func (l *StringLib) LowerCase(h pool.Handle) (pool.Handle, error) {
	s, err := l.text(h, "LowerCase")
	if err != nil {
		return 0, err
	}
	if l.mode == TextLegacy {
		return l.create(l.mapLegacy(s, unicode.ToLower))
	}
	return l.create(l.lower.String(s))
}

// UpperCase returns h in upper case.
func (l *StringLib) UpperCase(h pool.Handle) (pool.Handle, error) {
	s, err := l.text(h, "UpperCase")
	if err != nil {
		return 0, err
	}
	if l.mode == TextLegacy {
		return l.create(l.mapLegacy(s, unicode.ToUpper))
	}
	return l.create(l.upper.String(s))
}

// mapLegacy maps every byte through fn, keeping bytes whose mapped
// character has no single-byte form.
func (l *StringLib) mapLegacy(s string, fn func(rune) rune) string {
	out := []byte(s)
	for i := range out {
		if b, ok := legacyCharset.EncodeRune(fn(legacyCharset.DecodeByte(out[i]))); ok {
			out[i] = b
		}
	}
	return string(out)
}

// GetChars returns the character at index, or 0 when index is out of range.
// In legacy mode the raw byte value is returned.
func (l *StringLib) GetChars(h pool.Handle, index int) (rune, error) {
	s, err := l.text(h, "GetChars")
	if err != nil {
		return 0, err
	}
	if l.mode == TextLegacy {
		if index < 0 || index >= len(s) {
			return 0, nil
		}
		return rune(s[index]), nil
	}
	chars, _ := l.decode(s)
	if index < 0 || index >= len(chars) {
		return 0, nil
	}
	return chars[index], nil
}

// ToInt parses a leading decimal integer the way C atoi does; text with
// no number yields 0.
func (l *StringLib) ToInt(h pool.Handle) (int32, error) {
	s, err := l.text(h, "ToInt")
	if err != nil {
		return 0, err
	}
	return atoi(s), nil
}

// ToFloat parses a leading decimal number; text with no number yields 0.
func (l *StringLib) ToFloat(h pool.Handle) (float32, error) {
	s, err := l.text(h, "ToFloat")
	if err != nil {
		return 0, err
	}
	return atof(s), nil
}

// Format creates a string from a script format and arguments.
func (l *StringLib) Format(format string, args ...Arg) (pool.Handle, error) {
	return l.create(Sprintf(format, args, l.bufLen))
}

// Arg converts a string handle to a Sprintf argument.
func (l *StringLib) Arg(h pool.Handle) (Arg, error) {
	s, ok, err := l.strs.TextOf(h)
	if err != nil {
		return Arg{}, err
	}
	if !ok {
		return NullArg(), nil
	}
	return StringArg(s), nil
}

func skipSpace(s string) string {
	return strings.TrimLeft(s, " \t\n\v\f\r")
}

func atoi(s string) int32 {
	s = skipSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	var v int64
	for i := 0; i < len(s) && isDigit(s[i]); i++ {
		v = v*10 + int64(s[i]-'0')
		if v > 1<<32 {
			break
		}
	}
	if neg {
		v = -v
	}
	return int32(v)
}

func atof(s string) float32 {
	s = skipSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	for end < len(s) && isDigit(s[end]) {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && isDigit(s[end]) {
			end++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '-' || s[exp] == '+') {
			exp++
		}
		if exp < len(s) && isDigit(s[exp]) {
			for exp < len(s) && isDigit(s[exp]) {
				exp++
			}
			end = exp
		}
	}
	v, err := strconv.ParseFloat(s[:end], 32)
	if err != nil && v == 0 {
		return 0
	}
	return float32(v)
}
