package devapi

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const otpPeriod = 300

// newOTPSecret issues a per-reset TOTP secret. Codes stay valid for one
// five minute step in either direction.
func newOTPSecret(email string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "FinanceDashboard",
		AccountName: email,
		Period:      otpPeriod,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

func otpOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    otpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func generateOTP(secret string, now time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, now, otpOpts())
}

func verifyOTP(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, otpOpts())
	return err == nil && ok
}
