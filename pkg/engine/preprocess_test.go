package engine

import "testing"

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(box :size v)`,
			expect: `(box "__kw_size" v)`,
		},
		{
			name:   "keyword value",
			input:  `(box :layout :flat)`,
			expect: `(box "__kw_layout" "__kw_flat")`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "escaped quote in string",
			input:  `"a \" :b" :c`,
			expect: `"a \" :b" "__kw_c"`,
		},
		{
			name:   "backtick string preserved",
			input:  "`raw :kw solid-box`",
			expect: "`raw :kw solid-box`",
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(solid-box :angular-tolerance 0.1)`,
			expect: `(solid_box "__kw_angular-tolerance" 0.1)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 -1 0 -2.5)`,
			expect: `(vec3 -1 0 -2.5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword and solid-box`,
			expect: `// comment with :keyword and solid-box`,
		},
		{
			name:   "comment then code",
			input:  "; note\n(box :size v)",
			expect: "// note\n(box \"__kw_size\" v)",
		},
		{
			name:   "unterminated string",
			input:  `"abc`,
			expect: `"abc`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocess(tt.input)
			if got != tt.expect {
				t.Errorf("preprocess(%q)\n  got:  %q\n  want: %q", tt.input, got, tt.expect)
			}
		})
	}
}
