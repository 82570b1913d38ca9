package services

import (
	"strings"
	"testing"
)

func TestApplySpintaxPlainText(t *testing.T) {
	got := ApplySpintax("Hello there", "")
	if got != "Hello there" {
		t.Errorf("plain text changed: %q", got)
	}
}

func TestApplySpintaxFirstname(t *testing.T) {
	got := ApplySpintax("Hey {firstname}, welcome", "Anna")
	if got != "Hey Anna, welcome" {
		t.Errorf("firstname substitution failed: %q", got)
	}
}

func TestApplySpintaxFirstnameEmptyLeavesPlaceholder(t *testing.T) {
	got := ApplySpintax("Hey {firstname}", "")
	if got != "Hey {firstname}" {
		t.Errorf("empty firstname should leave placeholder: %q", got)
	}
}

func TestApplySpintaxChoosesOption(t *testing.T) {
	options := map[string]bool{"Hi": true, "Hey": true, "Hello": true}
	for i := 0; i < 50; i++ {
		got := ApplySpintax("[Hi|Hey|Hello]", "")
		if !options[got] {
			t.Fatalf("unexpected expansion %q", got)
		}
	}
}

func TestApplySpintaxTrimsOptionWhitespace(t *testing.T) {
	got := ApplySpintax("[ solo ]", "")
	if got != "[ solo ]" {
		// A single option has no pipe, so the group is left untouched.
		t.Errorf("single-option group should not expand: %q", got)
	}
	got = ApplySpintax("[ a | a ]", "")
	if got != "a" {
		t.Errorf("options should be trimmed: %q", got)
	}
}

func TestApplySpintaxNested(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := ApplySpintax("[[a|b]|[c|d]]", "")
		switch got {
		case "a", "b", "c", "d":
		default:
			t.Fatalf("nested expansion produced %q", got)
		}
	}
}

func TestApplySpintaxMultipleGroups(t *testing.T) {
	got := ApplySpintax("[x|x] and [y|y]", "")
	if got != "x and y" {
		t.Errorf("multiple groups: %q", got)
	}
}

func TestApplySpintaxCombined(t *testing.T) {
	got := ApplySpintax("[Hi|Hi] {firstname}", "Bo")
	if !strings.HasPrefix(got, "Hi ") || !strings.HasSuffix(got, "Bo") {
		t.Errorf("combined expansion: %q", got)
	}
}
