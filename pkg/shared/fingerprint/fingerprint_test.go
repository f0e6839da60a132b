package fingerprint

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Hash("abc"); got != want {
		t.Errorf("Hash(abc) = %s, want %s", got, want)
	}
	if _, err := hex.DecodeString(Hash("")); err != nil {
		t.Errorf("Hash() is not hex: %v", err)
	}
}

func TestGenerate(t *testing.T) {
	base := Input{FilePath: "src/main.go", RuleID: "go-sec-001", StartLine: 10, EndLine: 15}
	fp := Generate(base)

	tests := []struct {
		name     string
		modify   func(*Input)
		wantSame bool
	}{
		{"identical", func(*Input) {}, true},
		{"message ignored when located", func(in *Input) { in.Message = "other" }, true},
		{"case and separators ignored", func(in *Input) { in.FilePath = `SRC\Main.go`; in.RuleID = "GO-SEC-001" }, true},
		{"different line", func(in *Input) { in.StartLine = 20 }, false},
		{"different rule", func(in *Input) { in.RuleID = "go-sec-002" }, false},
		{"no line mixes in message", func(in *Input) { in.StartLine = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.modify(&in)
			if got := Generate(in); (got == fp) != tt.wantSame {
				t.Errorf("Generate(%+v) == Generate(base) is %v, want %v", in, got == fp, tt.wantSame)
			}
		})
	}

	unlocated := Input{RuleID: "rule", FilePath: "f.go"}
	a, b := unlocated, unlocated
	a.Message, b.Message = "message one", "message two"
	if Generate(a) == Generate(b) {
		t.Error("fingerprint without a line should include the message")
	}
}

func TestInput_Located(t *testing.T) {
	tests := []struct {
		in   Input
		want bool
	}{
		{Input{FilePath: "a.go", StartLine: 4}, true},
		{Input{FilePath: "a.go"}, false},
		{Input{StartLine: 4}, false},
		{Input{}, false},
	}
	for _, tt := range tests {
		if got := tt.in.Located(); got != tt.want {
			t.Errorf("%+v.Located() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUsable(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0f1e2d3c4b5a", true},
		{"39fa2ee980eb94b0:1", true},
		{"requires login", false},
		{"", false},
		{"tab\tinside", false},
		{"bell\a", false},
		{strings.Repeat("a", maxSourceLen+1), false},
	}

	for _, tt := range tests {
		if got := Usable(tt.in); got != tt.want {
			t.Errorf("Usable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	in := Input{FilePath: "app.py", RuleID: "r", StartLine: 7, EndLine: 7}

	if got := Resolve(" abc123 ", in); got != "abc123" {
		t.Errorf("Resolve() = %q, want source fingerprint", got)
	}
	if got := Resolve("requires login", in); got != Generate(in) {
		t.Errorf("Resolve() = %q, want generated fingerprint", got)
	}
}

func BenchmarkGenerate(b *testing.B) {
	in := Input{FilePath: "src/main.go", RuleID: "go-sec-001", StartLine: 10, EndLine: 15}
	for i := 0; i < b.N; i++ {
		Generate(in)
	}
}
