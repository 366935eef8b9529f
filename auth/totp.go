package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Cam1McH/RainienShare-sub001/internal/util"
)

// RFC 6238 with the default parameters every major authenticator app uses:
// HMAC-SHA1, 6 digits, 30-second steps, one step of clock-drift tolerance
// either side.
const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpPeriod      = 30
	totpSkew        = 1
)

// GenerateTOTPSecret returns a fresh base32-encoded shared secret with the
// standard 160 bits of entropy.
func GenerateTOTPSecret() (string, error) {
	raw, err := util.RandomBytes(totpSecretBytes)
	if err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// NormalizeTOTPCode strips the spaces users copy in from authenticator apps.
func NormalizeTOTPCode(code string) string {
	return strings.TrimSpace(strings.ReplaceAll(code, " ", ""))
}

// ValidTOTPCode reports whether code has the right shape: exactly six
// digits. Malformed input is a validation failure, never a crash.
func ValidTOTPCode(code string) bool {
	if len(code) != totpDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// VerifyTOTPCode checks a submitted code against the secret at the current
// step and ±totpSkew adjacent steps. Malformed codes and undecodable
// secrets verify as false.
func VerifyTOTPCode(secret, code string, now time.Time) bool {
	code = NormalizeTOTPCode(code)
	if !ValidTOTPCode(code) {
		return false
	}
	for i := -totpSkew; i <= totpSkew; i++ {
		at := now.Add(time.Duration(i*totpPeriod) * time.Second)
		expected, err := TOTPCodeAt(secret, at)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// TOTPCodeAt computes the code for a secret at a point in time. Exported
// for clients that need to produce codes (CLI tooling, tests).
func TOTPCodeAt(secret string, at time.Time) (string, error) {
	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decoding totp secret: %w", err)
	}

	counter := uint64(at.Unix() / totpPeriod)
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, decoded)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	binCode := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)
	otp := binCode % 1000000
	return fmt.Sprintf("%06d", otp), nil
}

// ProvisioningURL builds the otpauth:// URI encoded into the enrollment QR
// code.
func ProvisioningURL(issuer, accountLabel, secret string) string {
	label := url.PathEscape(issuer + ":" + accountLabel)
	values := url.Values{}
	values.Set("secret", secret)
	values.Set("issuer", issuer)
	values.Set("algorithm", "SHA1")
	values.Set("digits", strconv.Itoa(totpDigits))
	values.Set("period", strconv.Itoa(totpPeriod))
	return "otpauth://totp/" + label + "?" + values.Encode()
}
