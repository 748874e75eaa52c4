// Package launcher automates the game launcher: bringing its window
// up, switching accounts, submitting credentials, and starting the
// game client.
package launcher

import (
	"os"
	"strings"

	"github.com/VaynZXC/tanki/internal/errors"
)

// Credentials is one accounts-file entry.
type Credentials struct {
	Email    string
	Password string
}

// LoadAccounts parses an accounts file. Each line holds an email and a
// password separated by a tab, or by runs of whitespace as a fallback.
// Malformed lines are skipped, not fatal.
func LoadAccounts(path string) ([]Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Config, "read accounts file")
	}

	var out []Credentials
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.Trim(line, "\uFEFF\r ")
		if line == "" {
			continue
		}
		var parts []string
		if strings.Contains(line, "\t") {
			parts = strings.Split(line, "\t")
		} else {
			parts = strings.Fields(line)
		}
		if len(parts) < 2 {
			continue
		}
		email := strings.TrimSpace(parts[0])
		password := strings.TrimSpace(parts[1])
		if email == "" || password == "" {
			continue
		}
		out = append(out, Credentials{Email: email, Password: password})
	}
	if len(out) == 0 {
		return nil, errors.Newf(errors.Config, "no usable accounts in %s", path)
	}
	return out, nil
}

// ConsumeAccount pops the first account off the file and rewrites the
// remainder, so a crashed run never repeats a spent account.
func ConsumeAccount(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, errors.Wrap(err, errors.Config, "read accounts file")
	}

	lines := strings.Split(string(data), "\n")
	for i, raw := range lines {
		line := strings.Trim(raw, "\uFEFF\r ")
		if line == "" {
			continue
		}
		var parts []string
		if strings.Contains(line, "\t") {
			parts = strings.Split(line, "\t")
		} else {
			parts = strings.Fields(line)
		}
		if len(parts) < 2 {
			continue
		}
		rest := strings.Join(lines[i+1:], "\n")
		if err := os.WriteFile(path, []byte(rest), 0o644); err != nil {
			return Credentials{}, errors.Wrap(err, errors.Config, "rewrite accounts file")
		}
		return Credentials{
			Email:    strings.TrimSpace(parts[0]),
			Password: strings.TrimSpace(parts[1]),
		}, nil
	}
	return Credentials{}, errors.Newf(errors.Config, "no usable accounts in %s", path)
}

// AppendAccount writes one credential line in the canonical
// tab-separated format.
func AppendAccount(path string, creds Credentials) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.Config, "open accounts file")
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteString(creds.Email + "\t" + creds.Password + "\n")
	if err != nil {
		return errors.Wrap(err, errors.Config, "append account")
	}
	return nil
}
