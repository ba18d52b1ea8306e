package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// HashRefreshToken produces the storage key for a refresh token. Only this
// hash is persisted; the raw signed token never touches the database.
func HashRefreshToken(token, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashBackupCode canonicalizes (upper-case, trimmed) before hashing so the
// code survives careless transcription.
func HashBackupCode(code string) string {
	canonical := strings.ToUpper(strings.TrimSpace(code))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// NewBackupCodes returns count fresh 8-hex-char codes from crypto/rand.
func NewBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var raw [4]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, err
		}
		codes = append(codes, strings.ToUpper(hex.EncodeToString(raw[:])))
	}
	return codes, nil
}

func newJTI() string { return uuid.NewString() }
