package statement

import "testing"

func TestParseLineRange(t *testing.T) {
	tests := []struct {
		raw     string
		want    LineRange
		wantErr bool
	}{
		{raw: "3", want: LineRange{From: 3, To: 3}},
		{raw: "3:8", want: LineRange{From: 3, To: 8}},
		{raw: "3:", want: LineRange{From: 3}},
		{raw: ":8", want: LineRange{To: 8}},
		{raw: "", wantErr: true},
		{raw: "8:3", wantErr: true},
		{raw: "a:b", wantErr: true},
		{raw: "-1:2", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLineRange(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseLineRange(%q) expected error, got %+v", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseLineRange(%q) error = %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLineRange(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestSelectLines(t *testing.T) {
	buffer := "one\ntwo\nthree\nfour"
	tests := []struct {
		r    LineRange
		want string
	}{
		{LineRange{From: 2, To: 3}, "two\nthree"},
		{LineRange{From: 3}, "three\nfour"},
		{LineRange{To: 1}, "one"},
		{LineRange{From: 2, To: 99}, "two\nthree\nfour"},
		{LineRange{From: 9, To: 10}, ""},
	}
	for _, tt := range tests {
		if got := SelectLines(buffer, tt.r); got != tt.want {
			t.Fatalf("SelectLines(%+v) = %q, want %q", tt.r, got, tt.want)
		}
	}
}

func TestSplitOnSelection(t *testing.T) {
	buffer := "A | take 1;\nB | take 2;\nC | take 3;"
	got := Split(SelectLines(buffer, LineRange{From: 2, To: 2}))
	if len(got) != 1 || got[0].Text != "B | take 2" {
		t.Fatalf("Split(selection) = %#v", got)
	}
}

func TestParagraph(t *testing.T) {
	buffer := "A\n| take 1\n\nB\n| count\n| take 2\n"
	tests := []struct {
		line   int
		want   LineRange
		wantOK bool
	}{
		{line: 1, want: LineRange{From: 1, To: 2}, wantOK: true},
		{line: 2, want: LineRange{From: 1, To: 2}, wantOK: true},
		{line: 3},
		{line: 5, want: LineRange{From: 4, To: 6}, wantOK: true},
		{line: 99},
	}
	for _, tt := range tests {
		got, ok := Paragraph(buffer, tt.line)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("Paragraph(%d) = %+v, %v, want %+v, %v", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
	r, _ := Paragraph(buffer, 4)
	if got := SelectLines(buffer, r); got != "B\n| count\n| take 2" {
		t.Fatalf("SelectLines(paragraph) = %q", got)
	}
}
