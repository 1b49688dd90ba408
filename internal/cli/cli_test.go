package cli

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "doctor", "user", "tag", "summary", "apikey"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
	if root := NewRootCmd(""); root.Version != "dev" {
		t.Errorf("default version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	if root.PersistentFlags().Lookup("home") == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestUserAddAndList(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "--home", home, "user", "add", "--name", "Ada", "--email", "ada@example.com", "--role", "admin")
	if err != nil {
		t.Fatalf("user add: %v", err)
	}
	if !strings.Contains(out, "Created admin \"Ada\"") {
		t.Fatalf("unexpected output: %s", out)
	}

	// Duplicate email is rejected.
	if _, err := execute(t, "--home", home, "user", "add", "--name", "Ada2", "--email", "ada@example.com"); err == nil {
		t.Fatal("expected duplicate email error")
	}

	out, err = execute(t, "--home", home, "user", "list")
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if !strings.Contains(out, "Ada <ada@example.com> (admin)") {
		t.Fatalf("user missing from list: %s", out)
	}
}

func TestUserAdd_invalidRole(t *testing.T) {
	if _, err := execute(t, "--home", t.TempDir(), "user", "add", "--name", "X", "--email", "x@example.com", "--role", "superadmin"); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestTagAddListRemove(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "--home", home, "tag", "add", "urgent")
	if err != nil {
		t.Fatalf("tag add: %v", err)
	}
	if !strings.Contains(out, "Created tag \"urgent\"") {
		t.Fatalf("unexpected output: %s", out)
	}

	out, err = execute(t, "--home", home, "tag", "add", "urgent")
	if err != nil {
		t.Fatalf("tag add repeat: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Fatalf("expected idempotent add: %s", out)
	}

	out, err = execute(t, "--home", home, "tag", "list")
	if err != nil {
		t.Fatalf("tag list: %v", err)
	}
	if !strings.Contains(out, "urgent") {
		t.Fatalf("tag missing from list: %s", out)
	}

	if _, err := execute(t, "--home", home, "tag", "remove", "1"); err != nil {
		t.Fatalf("tag remove: %v", err)
	}
	if _, err := execute(t, "--home", home, "tag", "remove", "1"); err == nil {
		t.Fatal("expected not found on second remove")
	}
}

func TestSummaryEmpty(t *testing.T) {
	out, err := execute(t, "--home", t.TempDir(), "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "total        0") {
		t.Fatalf("unexpected summary: %s", out)
	}
}

func TestDoctor(t *testing.T) {
	out, err := execute(t, "--home", t.TempDir(), "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestApikeyGenerate(t *testing.T) {
	out, err := execute(t, "apikey", "generate")
	if err != nil {
		t.Fatalf("apikey generate: %v", err)
	}
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "OPSBOARD_API_KEY") {
		t.Errorf("output should mention OPSBOARD_API_KEY")
	}
	if !strings.Contains(out, "X-API-Key") {
		t.Errorf("output should mention X-API-Key")
	}
}
