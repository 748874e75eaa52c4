package launcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/VaynZXC/tanki/internal/errors"
)

func writeAccounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAccounts(t *testing.T) {
	path := writeAccounts(t, "\uFEFFfirst@mail.com\tpass1\n"+
		"second@mail.com pass2\n"+
		"\n"+
		"malformed-line\n"+
		"third@mail.com\tpass3\t extra\n")

	got, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts() error = %v", err)
	}
	want := []Credentials{
		{"first@mail.com", "pass1"},
		{"second@mail.com", "pass2"},
		{"third@mail.com", "pass3"},
	}
	if len(got) != len(want) {
		t.Fatalf("accounts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("account %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadAccountsEmpty(t *testing.T) {
	path := writeAccounts(t, "\n# nothing usable\n")
	_, err := LoadAccounts(path)
	if errors.KindOf(err) != errors.Config {
		t.Fatalf("LoadAccounts() error kind = %v, want config", errors.KindOf(err))
	}
}

func TestConsumeAccount(t *testing.T) {
	path := writeAccounts(t, "one@mail.com\tp1\ntwo@mail.com\tp2\n")

	first, err := ConsumeAccount(path)
	if err != nil {
		t.Fatalf("ConsumeAccount() error = %v", err)
	}
	if first.Email != "one@mail.com" || first.Password != "p1" {
		t.Errorf("first = %v", first)
	}

	second, err := ConsumeAccount(path)
	if err != nil {
		t.Fatalf("ConsumeAccount() second error = %v", err)
	}
	if second.Email != "two@mail.com" {
		t.Errorf("second = %v", second)
	}

	if _, err := ConsumeAccount(path); errors.KindOf(err) != errors.Config {
		t.Fatalf("third consume error kind = %v, want config", errors.KindOf(err))
	}
}

func TestLoadAccountsRejectsColonSeparated(t *testing.T) {
	path := writeAccounts(t, "buyer@firstmail.ltd:s3cret\n")
	if _, err := LoadAccounts(path); errors.KindOf(err) != errors.Config {
		t.Fatalf("LoadAccounts() error kind = %v, want config (colon lines are malformed)", errors.KindOf(err))
	}

	// purchased mailboxes must go through AppendAccount to stay loadable
	if err := AppendAccount(path, Credentials{"buyer@firstmail.ltd", "s3cret"}); err != nil {
		t.Fatalf("AppendAccount() error = %v", err)
	}
	got, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts() error = %v", err)
	}
	if len(got) != 1 || got[0] != (Credentials{"buyer@firstmail.ltd", "s3cret"}) {
		t.Fatalf("accounts = %v, want the appended mailbox only", got)
	}
}

func TestAppendAccountRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	want := Credentials{"new@mail.com", "secret"}
	if err := AppendAccount(path, want); err != nil {
		t.Fatalf("AppendAccount() error = %v", err)
	}
	got, err := LoadAccounts(path)
	if err != nil {
		t.Fatalf("LoadAccounts() error = %v", err)
	}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("accounts = %v, want [%v]", got, want)
	}
}
