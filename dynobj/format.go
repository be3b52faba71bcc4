package dynobj

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultFormatBuffer is the default output limit of StringLib.Format, including
// the terminator.
const DefaultFormatBuffer = 3000

type argKind uint8

const (
	argInt argKind = iota
	argFloat
	argString
	argNull
)

// Arg is one script value passed to Sprintf.
type Arg struct {
	s    string
	i    int32
	f    float32
	kind argKind
}

// IntArg wraps a script integer.
func IntArg(v int32) Arg { return Arg{kind: argInt, i: v} }

// FloatArg wraps a script float.
func FloatArg(v float32) Arg { return Arg{kind: argFloat, f: v} }

// StringArg wraps script text.
func StringArg(v string) Arg { return Arg{kind: argString, s: v} }

// NullArg is a null string reference.
func NullArg() Arg { return Arg{kind: argNull} }

func (a Arg) String() string { return a.text() }

func (a Arg) intValue() int32 {
	if a.kind == argFloat {
		return int32(a.f)
	}
	return a.i
}

func (a Arg) floatValue() float64 {
	if a.kind == argFloat {
		return float64(a.f)
	}
	return float64(a.i)
}

func (a Arg) text() string {
	switch a.kind {
	case argString:
		return a.s
	case argNull:
		return "(null)"
	case argFloat:
		return strconv.FormatFloat(float64(a.f), 'g', -1, 32)
	default:
		return strconv.FormatInt(int64(a.i), 10)
	}
}

const (
	fmtFlags = "-+ #0"
	fmtVerbs = "diuxXocfFeEgGs"
)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Sprintf formats args the way script code expects:
//
//   - "%%" prints a percent sign
//   - placeholders take flags "-+ #0", a width, a precision and one of
//     the conversions d i u x X o c f F e E g G s
//   - a malformed placeholder is copied literally up to the offending
//     character, which is then processed normally
//   - a placeholder with no argument left is copied literally
//   - a null string prints "(null)"
//
// The result is cut to bufLen-1 bytes; bufLen <= 0 means no limit.
func Sprintf(format string, args []Arg, bufLen int) string {
	var out strings.Builder
	next := 0
	for i := 0; i < len(format); {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			out.WriteByte('%')
			i += 2
			continue
		}

		j := i + 1
		for j < len(format) && strings.IndexByte(fmtFlags, format[j]) >= 0 {
			j++
		}
		for j < len(format) && isDigit(format[j]) {
			j++
		}
		if j < len(format) && format[j] == '.' {
			j++
			for j < len(format) && isDigit(format[j]) {
				j++
			}
		}
		if j >= len(format) || strings.IndexByte(fmtVerbs, format[j]) < 0 {
			out.WriteString(format[i:j])
			i = j
			continue
		}

		spec := format[i : j+1]
		if next >= len(args) {
			out.WriteString(spec)
		} else {
			out.WriteString(formatArg(spec[:len(spec)-1], format[j], args[next]))
			next++
		}
		i = j + 1
	}

	s := out.String()
	if bufLen > 0 && len(s) > bufLen-1 {
		s = s[:bufLen-1]
	}
	return s
}

// formatArg renders one argument. prefix is the placeholder without its
// conversion character.
func formatArg(prefix string, verb byte, a Arg) string {
	switch verb {
	case 'd', 'i':
		return fmt.Sprintf(prefix+"d", a.intValue())
	case 'u':
		return fmt.Sprintf(prefix+"d", uint32(a.intValue()))
	case 'x', 'X', 'o':
		return fmt.Sprintf(prefix+string(verb), uint32(a.intValue()))
	case 'c':
		return fmt.Sprintf(prefix+"c", rune(a.intValue()))
	case 'f', 'F':
		return fmt.Sprintf(prefix+"f", a.floatValue())
	case 'e', 'E':
		return fmt.Sprintf(prefix+string(verb), a.floatValue())
	case 'g', 'G':
		// %g without a precision means 6 significant digits
		if !strings.Contains(prefix, ".") {
			prefix += ".6"
		}
		return fmt.Sprintf(prefix+string(verb), a.floatValue())
	default:
		return fmt.Sprintf(prefix+"s", a.text())
	}
}
