package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestPromptYesNoAccepts(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"no\n", false},
		{"NO\n", false},
	}

	for _, tc := range cases {
		var out bytes.Buffer
		got := PromptYesNoWithReader("Delete task?", strings.NewReader(tc.input), &out)
		if got != tc.want {
			t.Errorf("PromptYesNo(%q) = %v, want %v", strings.TrimSpace(tc.input), got, tc.want)
		}
		if !strings.Contains(out.String(), "Delete task? (y/n):") {
			t.Errorf("prompt not written: %q", out.String())
		}
	}
}

func TestPromptYesNoRepromptsOnGarbage(t *testing.T) {
	var out bytes.Buffer
	got := PromptYesNoWithReader("Proceed?", strings.NewReader("maybe\ny\n"), &out)
	if !got {
		t.Error("expected true after re-prompt")
	}
	if strings.Count(out.String(), "(y/n):") != 2 {
		t.Errorf("expected two prompts, got output %q", out.String())
	}
}

func TestPromptYesNoEOFIsNo(t *testing.T) {
	var out bytes.Buffer
	if PromptYesNoWithReader("Proceed?", strings.NewReader(""), &out) {
		t.Error("EOF should answer no")
	}
}
