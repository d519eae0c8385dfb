package service

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Gopher0727/TeamMatch/config"
)

// PasswordHasher hashes account passwords and checks them at login.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// NewPasswordHasher picks the algorithm from config. Verification accepts
// both formats regardless, so switching to bcrypt keeps old md5 rows usable.
func NewPasswordHasher(cfg *config.PasswordConfig) (PasswordHasher, error) {
	switch cfg.Algorithm {
	case "md5", "":
		return &saltedMD5Hasher{salt: cfg.Salt}, nil
	case "bcrypt":
		return &bcryptHasher{salt: cfg.Salt, cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
}

// saltedMD5Hasher stores hex(md5(salt + password)), the format of existing rows.
type saltedMD5Hasher struct {
	salt string
}

func (h *saltedMD5Hasher) Hash(password string) (string, error) {
	return md5Hex(h.salt, password), nil
}

func (h *saltedMD5Hasher) Verify(hash, password string) bool {
	return verify(h.salt, hash, password)
}

type bcryptHasher struct {
	salt string
	cost int
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(h.salt+password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *bcryptHasher) Verify(hash, password string) bool {
	return verify(h.salt, hash, password)
}

func verify(salt, hash, password string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(salt+password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(md5Hex(salt, password))) == 1
}

func md5Hex(salt, password string) string {
	sum := md5.Sum([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}
