package llmvision

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text",
			in:   "Hello World",
			want: "Hello World",
		},
		{
			name: "think block stripped",
			in:   "<think>the image shows a receipt</think>Total: 4.30",
			want: "Total: 4.30",
		},
		{
			name: "thinking variant stripped",
			in:   "<thinking>\nsome\nreasoning\n</thinking>\nAnswer",
			want: "Answer",
		},
		{
			name: "heading and list flattened",
			in:   "# Receipt\n\n- Milk 2.50\n- Bread 1.80",
			want: "Receipt\nMilk 2.50\nBread 1.80",
		},
		{
			name: "ordered list flattened",
			in:   "1. first\n2. second",
			want: "first\nsecond",
		},
		{
			name: "fenced code kept verbatim",
			in:   "```\nTotal: 4.30\n```",
			want: "Total: 4.30",
		},
		{
			name: "inline emphasis removed",
			in:   "The **total** is *42*",
			want: "The total is 42",
		},
		{
			name: "html block stripped",
			in:   "<p>Name: <b>Ada</b></p>",
			want: "Name: Ada",
		},
		{
			name: "inline html stripped",
			in:   "Line<br>break",
			want: "Line\nbreak",
		},
		{
			name: "soft break preserved",
			in:   "line one\nline two",
			want: "line one\nline two",
		},
		{
			name: "autolink keeps url",
			in:   "<https://example.com>",
			want: "https://example.com",
		},
		{
			name: "blank runs collapsed",
			in:   "```\na\n\n\n\nb\n```",
			want: "a\n\nb",
		},
		{
			name: "blockquote flattened",
			in:   "> quoted line",
			want: "quoted line",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only",
			in:   "  \n\t\n",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
