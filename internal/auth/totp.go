package auth

import (
	"github.com/pkg/errors"
	"github.com/pquerna/otp/totp"
)

// NewTOTPKey generates a fresh shared secret for a user. The returned
// URL is the otpauth:// provisioning URI a client renders as a QR code.
func NewTOTPKey(issuer, account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", errors.Wrap(err, "generate totp key")
	}
	return key.Secret(), key.URL(), nil
}

func ValidateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}
