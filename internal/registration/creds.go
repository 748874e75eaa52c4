package registration

import (
	"math/rand/v2"
	"strings"
)

const (
	lower   = "abcdefghijklmnopqrstuvwxyz"
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
	symbols = "!@#$%^&*()_+-="

	// usernameSuffix keeps generated names unique within the signup
	// namespace while staying below the length limit.
	usernameSuffix = "2025"
)

// GeneratePassword returns a random password with at least one
// character of each class.
func GeneratePassword(length int) string {
	if length < 8 {
		length = 12
	}
	all := lower + upper + digits + symbols
	pwd := []byte{
		lower[rand.IntN(len(lower))],
		upper[rand.IntN(len(upper))],
		digits[rand.IntN(len(digits))],
		symbols[rand.IntN(len(symbols))],
	}
	for len(pwd) < length {
		pwd = append(pwd, all[rand.IntN(len(all))])
	}
	rand.Shuffle(len(pwd), func(i, j int) { pwd[i], pwd[j] = pwd[j], pwd[i] })
	return string(pwd)
}

// UsernameFromEmail derives a player name from the mailbox local part
// plus random padding.
func UsernameFromEmail(email string) string {
	name, _, _ := strings.Cut(email, "@")
	if len(name) > 10 {
		name = name[:10]
	}
	pad := make([]byte, 4)
	alnum := lower + digits
	for i := range pad {
		pad[i] = alnum[rand.IntN(len(alnum))]
	}
	return strings.ToLower(name+string(pad)) + usernameSuffix
}
