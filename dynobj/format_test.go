package dynobj

import "testing"

func TestSprintf(t *testing.T) {
	args := []Arg{IntArg(123), FloatArg(0.456), StringArg("string literal")}

	tests := []struct {
		name   string
		format string
		args   []Arg
		bufLen int
		want   string
	}{
		{
			name:   "extra placeholder",
			format: "This is int: %10d\nThis is float: %.4f\nThis is string: '%s'\nThis placeholder will be ignored: %d",
			args:   args,
			bufLen: DefaultFormatBuffer,
			want:   "This is int:        123\nThis is float: 0.4560\nThis is string: 'string literal'\nThis placeholder will be ignored: %d",
		},
		{name: "percent after int", format: "%d%%", args: args, bufLen: DefaultFormatBuffer, want: "123%"},
		{name: "percent only", format: "123%%", bufLen: DefaultFormatBuffer, want: "123%"},
		{name: "escaped placeholders", format: "%%5d%%0.5f%%s", args: args, bufLen: DefaultFormatBuffer, want: "%5d%0.5f%s"},
		{name: "invalid conversion", format: "%zzzzzz", args: args, bufLen: DefaultFormatBuffer, want: "%zzzzzz"},
		{name: "invalid then valid", format: "%12.34%d", args: args, bufLen: DefaultFormatBuffer, want: "%12.34123"},
		{name: "no arguments", format: "%5d%0.5f%s", bufLen: DefaultFormatBuffer, want: "%5d%0.5f%s"},
		{name: "buffer cuts literal", format: "12345678%d", args: args, bufLen: 9, want: "12345678"},
		{name: "buffer cuts value", format: "12345678%d", args: args, bufLen: 11, want: "1234567812"},
		{name: "buffer cuts placeholder", format: "12345678%d", bufLen: 10, want: "12345678%"},
		{name: "buffer fits placeholder", format: "12345678%d", bufLen: 11, want: "12345678%d"},
		{name: "null string", format: "A%sB", args: []Arg{NullArg()}, bufLen: 10, want: "A(null)B"},
		{name: "no limit", format: "%s", args: []Arg{StringArg("abc")}, want: "abc"},
		{name: "trailing percent", format: "50%", bufLen: DefaultFormatBuffer, want: "50%"},
		{name: "hex and octal", format: "%x %X %#o", args: []Arg{IntArg(255), IntArg(255), IntArg(8)}, want: "ff FF 010"},
		{name: "unsigned", format: "%u", args: []Arg{IntArg(-1)}, want: "4294967295"},
		{name: "char", format: "%c%c", args: []Arg{IntArg('o'), IntArg('k')}, want: "ok"},
		{name: "left aligned", format: "[%-5d]", args: []Arg{IntArg(42)}, want: "[42   ]"},
		{name: "zero padded", format: "%05d", args: []Arg{IntArg(-42)}, want: "-0042"},
		{name: "g default precision", format: "%g", args: []Arg{FloatArg(1.5)}, want: "1.5"},
		{name: "exponent", format: "%.2e", args: []Arg{FloatArg(1500)}, want: "1.50e+03"},
		{name: "int as float", format: "%.1f", args: []Arg{IntArg(3)}, want: "3.0"},
		{name: "float as int", format: "%d", args: []Arg{FloatArg(3.7)}, want: "3"},
		{name: "int as string", format: "%s", args: []Arg{IntArg(7)}, want: "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sprintf(tt.format, tt.args, tt.bufLen); got != tt.want {
				t.Errorf("Sprintf(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}
