package commands

import (
	"fmt"
	"testing"
)

func TestTagged(t *testing.T) {
	format := tagged("%v  group has %v members")
	expected := "groups  list@example.org  group has 3 members"

	if s := fmt.Sprintf(format, "list@example.org", 3); s != expected {
		t.Errorf("Incorrect log message\n   expected: %q\n   got:      %q", expected, s)
	}

	if s := fmt.Sprintf(tagged("Pruned %d log records"), 12); s != "groups  Pruned 12 log records" {
		t.Errorf("Incorrect log message %q", s)
	}
}
