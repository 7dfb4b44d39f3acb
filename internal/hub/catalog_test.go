package hub

import (
	"errors"
	"testing"
)

func TestCatalog_PublishLookupClear(t *testing.T) {
	c := newCatalog()

	if _, err := c.lookup("fs", "read_file"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound before publish, got %v", err)
	}

	c.publish("fs", []ToolDescriptor{
		{ServerName: "fs", Name: "read_file"},
		{ServerName: "fs", Name: "write_file"},
	})

	desc, err := c.lookup("fs", "read_file")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Name != "read_file" {
		t.Fatalf("expected read_file, got %s", desc.Name)
	}

	if !c.exists("fs", "write_file") {
		t.Fatalf("expected write_file to exist")
	}

	listed := c.list("fs")
	if len(listed) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(listed))
	}

	c.clear("fs")
	if c.exists("fs", "read_file") {
		t.Fatalf("expected catalog cleared for fs")
	}
}

func TestCatalog_PublishReplacesPreviousSet(t *testing.T) {
	c := newCatalog()
	c.publish("fs", []ToolDescriptor{{ServerName: "fs", Name: "a"}})
	c.publish("fs", []ToolDescriptor{{ServerName: "fs", Name: "b"}})

	if c.exists("fs", "a") {
		t.Fatalf("expected stale tool a to be gone after republish")
	}
	if !c.exists("fs", "b") {
		t.Fatalf("expected tool b to exist")
	}
}
