package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/launcher"
)

type fakeLogin struct {
	errs  []error
	calls int
}

func (f *fakeLogin) Run(_ context.Context, _ launcher.Credentials) error {
	err := error(nil)
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	return err
}

type fakeGame struct {
	rewards []string
	err     error
	runs    *int
}

func (f *fakeGame) Run(_ context.Context) ([]string, error) {
	*f.runs = *f.runs + 1
	return f.rewards, f.err
}

func newTestRunner(login *fakeLogin, game *fakeGame, retries int) *Runner {
	return New(login, func() GameFlow { return game }, Config{GameStartRetries: retries})
}

func TestRunAccountSuccess(t *testing.T) {
	login := &fakeLogin{}
	runs := 0
	game := &fakeGame{rewards: []string{"is7", "fv4005"}, runs: &runs}

	rewards, err := newTestRunner(login, game, 2).RunAccount(context.Background(), launcher.Credentials{Email: "a@b.c"})
	if err != nil {
		t.Fatalf("RunAccount: %v", err)
	}
	if len(rewards) != 2 || rewards[0] != "is7" {
		t.Errorf("rewards = %v", rewards)
	}
	if login.calls != 1 || runs != 1 {
		t.Errorf("login calls = %d, game runs = %d, want 1 each", login.calls, runs)
	}
}

func TestRunAccountRetriesGameStartTimeout(t *testing.T) {
	timeout := errors.New(errors.GameStartTimeout, "game window never appeared")
	login := &fakeLogin{errs: []error{timeout, timeout, nil}}
	runs := 0
	game := &fakeGame{rewards: []string{"is7"}, runs: &runs}

	rewards, err := newTestRunner(login, game, 2).RunAccount(context.Background(), launcher.Credentials{Email: "a@b.c"})
	if err != nil {
		t.Fatalf("RunAccount: %v", err)
	}
	if login.calls != 3 {
		t.Errorf("login calls = %d, want 3", login.calls)
	}
	if len(rewards) != 1 {
		t.Errorf("rewards = %v", rewards)
	}
}

func TestRunAccountRetriesExhausted(t *testing.T) {
	timeout := errors.New(errors.GameStartTimeout, "game window never appeared")
	login := &fakeLogin{errs: []error{timeout, timeout, timeout}}
	runs := 0
	game := &fakeGame{runs: &runs}

	_, err := newTestRunner(login, game, 2).RunAccount(context.Background(), launcher.Credentials{Email: "a@b.c"})
	if !errors.IsKind(err, errors.GameStartTimeout) {
		t.Fatalf("err = %v, want GameStartTimeout", err)
	}
	if login.calls != 3 {
		t.Errorf("login calls = %d, want 3", login.calls)
	}
	if runs != 0 {
		t.Errorf("game ran %d times despite login never succeeding", runs)
	}
}

func TestRunAccountInvalidCredentialsNotRetried(t *testing.T) {
	invalid := errors.New(errors.InvalidCredentials, "launcher rejected the password")
	login := &fakeLogin{errs: []error{invalid}}
	runs := 0
	game := &fakeGame{runs: &runs}

	_, err := newTestRunner(login, game, 2).RunAccount(context.Background(), launcher.Credentials{Email: "a@b.c"})
	if !errors.IsKind(err, errors.InvalidCredentials) {
		t.Fatalf("err = %v, want InvalidCredentials", err)
	}
	if login.calls != 1 {
		t.Errorf("login calls = %d, want 1", login.calls)
	}
}

func TestRunAccountGameTimeoutRestartsLogin(t *testing.T) {
	login := &fakeLogin{}
	runs := 0
	game := &fakeGame{err: errors.New(errors.GameStartTimeout, "hangar never loaded"), runs: &runs}

	_, err := newTestRunner(login, game, 1).RunAccount(context.Background(), launcher.Credentials{Email: "a@b.c"})
	if !errors.IsKind(err, errors.GameStartTimeout) {
		t.Fatalf("err = %v, want GameStartTimeout", err)
	}
	if login.calls != 2 || runs != 2 {
		t.Errorf("login calls = %d, game runs = %d, want 2 each", login.calls, runs)
	}
}

func TestRunAccountCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runs := 0
	_, err := newTestRunner(&fakeLogin{}, &fakeGame{runs: &runs}, 0).RunAccount(ctx, launcher.Credentials{})
	if !errors.IsKind(err, errors.Canceled) {
		t.Fatalf("err = %v, want Canceled", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "success"},
		{"invalid", errors.New(errors.InvalidCredentials, "x"), "invalid_credentials"},
		{"budget", errors.New(errors.TimeBudget, "x"), "time_budget"},
		{"game start", errors.New(errors.GameStartTimeout, "x"), "game_start_timeout"},
		{"canceled", errors.New(errors.Canceled, "x"), "canceled"},
		{"transient", errors.New(errors.Transient, "x"), "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordBuckets(t *testing.T) {
	dir := t.TempDir()
	r := New(nil, nil, Config{BucketDir: dir})
	creds := launcher.Credentials{Email: "a@b.c", Password: "pw"}

	if err := r.Record(creds, []string{"is7", "fv4005"}, nil); err != nil {
		t.Fatalf("Record success: %v", err)
	}
	if err := r.Record(creds, nil, errors.New(errors.InvalidCredentials, "x")); err != nil {
		t.Fatalf("Record invalid: %v", err)
	}
	if err := r.Record(creds, nil, errors.New(errors.Transient, "x")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := r.Record(creds, nil, errors.New(errors.Canceled, "x")); err != nil {
		t.Fatalf("Record canceled: %v", err)
	}

	assertLine := func(file, want string) {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if !strings.Contains(string(data), want) {
			t.Errorf("%s = %q, want substring %q", file, data, want)
		}
	}

	assertLine(BucketSuccess, "a@b.c\tpw")
	assertLine(BucketInvalid, "a@b.c\tpw")
	assertLine(BucketFailed, "a@b.c\tpw")
	assertLine("rewards.txt", "a@b.c\tis7,fv4005")

	// canceled attempts leave no bucket entry beyond the one failure
	data, _ := os.ReadFile(filepath.Join(dir, BucketFailed))
	if got := strings.Count(string(data), "a@b.c"); got != 1 {
		t.Errorf("failed bucket entries = %d, want 1", got)
	}
}
