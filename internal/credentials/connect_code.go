package credentials

import (
	"crypto/rand"
	"math/big"
)

// ConnectCodeLength is the fixed length of a household code
const ConnectCodeLength = 8

// connectAlphabet omits 0/O and 1/I so codes read back unambiguously
const connectAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateConnectCode generates a random household code.
// Uniqueness is the caller's job; see AccountService.CreateParent.
func GenerateConnectCode() (string, error) {
	return randomString(connectAlphabet, ConnectCodeLength)
}

// randomString picks n characters from alphabet using crypto/rand
func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[num.Int64()]
	}
	return string(out), nil
}
