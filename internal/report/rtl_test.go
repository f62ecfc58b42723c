package report

import (
	"strings"
	"testing"
)

func TestReorderRTL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"latin words", "A B C", "C B A"},
		{"single word", "hello", "hello"},
		{"arabic word reversed", "سلام", "مالس"},
		{"percent kept", "النسبة 80%", "80% ةبسنلا"},
		{"acronym kept", "امتحان ABC", "ABC ناحتما"},
		{"mixed token keeps digits", "رقم123", "123مقر"},
		{"brackets mirrored", "(نعم)", "(معن)"},
		{"extra spaces collapse", "  A   B ", "B A"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReorderRTL(tt.in); got != tt.want {
				t.Errorf("ReorderRTL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestVisualOrderLeavesLatinAlone(t *testing.T) {
	in := "Question 1: what is  the fee?"
	if got := VisualOrder(in); got != in {
		t.Errorf("VisualOrder(%q) = %q, want unchanged", in, got)
	}
}

func TestVisualOrderArabicWithAcronym(t *testing.T) {
	got := VisualOrder("خدمة EMS السريعة")
	words := strings.Fields(got)
	if len(words) != 3 {
		t.Fatalf("got %d words in %q, want 3", len(words), got)
	}
	if words[1] != "EMS" {
		t.Errorf("acronym = %q, want EMS unmirrored", words[1])
	}
	if words[0] != "ةعيرسلا" {
		t.Errorf("first visual word = %q, want last logical word reversed", words[0])
	}
}

func TestContainsRTL(t *testing.T) {
	if ContainsRTL("Passed 80%") {
		t.Error("latin text reported as RTL")
	}
	if !ContainsRTL("Score: ناجح") {
		t.Error("arabic text not detected")
	}
	if !ContainsRTL("ﻻ") {
		t.Error("arabic presentation form not detected")
	}
}
