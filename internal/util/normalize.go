package util

import "golang.org/x/text/unicode/norm"

// Normalize applies NFKD normalization. Passwords are normalized before
// hashing so that visually identical inputs typed on different platforms
// compare equal.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
