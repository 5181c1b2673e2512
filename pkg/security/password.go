// Package security hashes admin passwords with Argon2id in the PHC string
// format ($argon2id$v=19$m=..,t=..,p=..$salt$key).
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/sabunku/storefront-backend/pkg/config"
)

// MaxPasswordBytes bounds the input Argon2 is asked to hash.
const MaxPasswordBytes = 1024

var (
	ErrInvalidHash     = errors.New("invalid argon2id hash")
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrPasswordTooLong = fmt.Errorf("password exceeds %d bytes", MaxPasswordBytes)
)

var b64 = base64.RawStdEncoding

// Params are the Argon2id cost settings recorded in every hash.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

func (p Params) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.Memory, p.Time, p.Parallelism)
}

// Hasher is safe for concurrent use.
type Hasher struct {
	params Params
	dummy  string
}

func NewHasher(cfg config.PasswordConfig) *Hasher {
	h := &Hasher{params: Params{
		Memory:      uint32(bound(cfg.ArgonMemoryKB, 8, 512*1024)),
		Time:        uint32(bound(cfg.ArgonTime, 1, 10)),
		Parallelism: uint8(bound(cfg.ArgonParallelism, 1, 255)),
		SaltLen:     uint32(bound(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:      uint32(bound(cfg.ArgonKeyLen, 16, 64)),
	}}
	h.dummy, _ = h.Hash("sabunku-timing-equaliser")
	return h
}

func (h *Hasher) Params() Params { return h.params }

func (h *Hasher) Hash(password string) (string, error) {
	if err := checkPassword(password); err != nil {
		return "", err
	}
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := derive(password, salt, h.params)
	return "$argon2id$v=" + strconv.Itoa(argon2.Version) + "$" + h.params.String() +
		"$" + b64.EncodeToString(salt) + "$" + b64.EncodeToString(key), nil
}

// Verify compares in constant time. A malformed hash is an error, a wrong
// password is not.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	parsed, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	if len(password) > MaxPasswordBytes {
		return false, nil
	}
	got := derive(password, parsed.salt, parsed.params)
	return subtle.ConstantTimeCompare(parsed.key, got) == 1, nil
}

// VerifyDummy spends one Verify worth of work so unknown accounts answer as
// slowly as known ones.
func (h *Hasher) VerifyDummy(password string) {
	if h.dummy != "" {
		_, _ = h.Verify(password, h.dummy)
	}
}

// NeedsRehash is true for malformed hashes and for hashes made with cost
// settings other than the current ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	parsed, err := parseHash(encoded)
	if err != nil {
		return true
	}
	p := parsed.params
	return p.Memory != h.params.Memory || p.Time != h.params.Time ||
		p.Parallelism != h.params.Parallelism || p.KeyLen != h.params.KeyLen
}

func checkPassword(password string) error {
	switch {
	case password == "":
		return ErrEmptyPassword
	case len(password) > MaxPasswordBytes:
		return ErrPasswordTooLong
	}
	return nil
}

func derive(password string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
}

type parsedHash struct {
	params    Params
	salt, key []byte
}

func parseHash(encoded string) (parsedHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return parsedHash{}, ErrInvalidHash
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return parsedHash{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, fields[2])
	}

	var out parsedHash
	for _, kv := range strings.Split(fields[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return parsedHash{}, ErrInvalidHash
		}
		bits := 32
		if name == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(raw, 10, bits)
		if err != nil || n == 0 {
			return parsedHash{}, ErrInvalidHash
		}
		switch name {
		case "m":
			out.params.Memory = uint32(n)
		case "t":
			out.params.Time = uint32(n)
		case "p":
			out.params.Parallelism = uint8(n)
		default:
			return parsedHash{}, ErrInvalidHash
		}
	}
	if out.params.Memory == 0 || out.params.Time == 0 || out.params.Parallelism == 0 {
		return parsedHash{}, ErrInvalidHash
	}

	var err error
	if out.salt, err = b64.DecodeString(fields[4]); err != nil || len(out.salt) == 0 {
		return parsedHash{}, ErrInvalidHash
	}
	if out.key, err = b64.DecodeString(fields[5]); err != nil || len(out.key) == 0 {
		return parsedHash{}, ErrInvalidHash
	}
	out.params.SaltLen = uint32(len(out.salt))
	out.params.KeyLen = uint32(len(out.key))
	return out, nil
}

func bound(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
