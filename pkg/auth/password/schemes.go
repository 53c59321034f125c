package password

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for BLF-CRYPT digests.
const bcryptCost = 10

// schemeEntry pairs the encode and verify functions of a scheme.
// verify receives the digest without its brace tag.
type schemeEntry struct {
	tag    string
	encode func(raw string) (string, error)
	verify func(raw, digest string) bool
}

func (e schemeEntry) prefix() string {
	if e.tag == "" {
		return ""
	}
	return "{" + e.tag + "}"
}

var schemes = map[Scheme]schemeEntry{
	SchemeCrypt: {
		tag:    "CRYPT",
		encode: cryptEncoder(sha512_crypt.New),
		verify: verifyCrypt,
	},
	SchemeMD5: {
		tag: "MD5",
		encode: func(raw string) (string, error) {
			sum := md5.Sum([]byte(raw))
			return hex.EncodeToString(sum[:]), nil
		},
		verify: func(raw, digest string) bool {
			sum := md5.Sum([]byte(raw))
			return constantTimeEqual(hex.EncodeToString(sum[:]), strings.ToLower(digest))
		},
	},
	SchemeMD5Crypt: {
		// The digest already starts with "$1$".
		tag:    "",
		encode: cryptEncoder(md5_crypt.New),
		verify: cryptVerifier(md5_crypt.New),
	},
	SchemeSHA256: {
		tag: "SHA256",
		encode: func(raw string) (string, error) {
			return sha256Base64(raw), nil
		},
		verify: func(raw, digest string) bool {
			return constantTimeEqual(sha256Base64(raw), digest)
		},
	},
	SchemePlain: {
		tag: "PLAIN",
		encode: func(raw string) (string, error) {
			return raw, nil
		},
		verify: constantTimeEqual,
	},
	SchemeSHA256Crypt: {
		tag:    "SHA256-CRYPT",
		encode: cryptEncoder(sha256_crypt.New),
		verify: cryptVerifier(sha256_crypt.New),
	},
	SchemeSHA512Crypt: {
		tag:    "SHA512-CRYPT",
		encode: cryptEncoder(sha512_crypt.New),
		verify: cryptVerifier(sha512_crypt.New),
	},
	SchemeBLFCrypt: {
		tag: "BLF-CRYPT",
		encode: func(raw string) (string, error) {
			hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcryptCost)
			if err != nil {
				return "", err
			}
			return string(hash), nil
		},
		verify: verifyBcrypt,
	},
}

// cryptEncoder returns an encoder generating a fresh random salt per call.
func cryptEncoder(newCrypter func() crypt.Crypter) func(string) (string, error) {
	return func(raw string) (string, error) {
		return newCrypter().Generate([]byte(raw), nil)
	}
}

func cryptVerifier(newCrypter func() crypt.Crypter) func(string, string) bool {
	return func(raw, digest string) bool {
		return newCrypter().Verify(digest, []byte(raw)) == nil
	}
}

// verifyCrypt checks a crypt(3) digest by its modular format identifier.
// Traditional DES digests carry no identifier and are not supported.
func verifyCrypt(raw, digest string) bool {
	switch {
	case strings.HasPrefix(digest, "$1$"):
		return cryptVerifier(md5_crypt.New)(raw, digest)
	case strings.HasPrefix(digest, "$5$"):
		return cryptVerifier(sha256_crypt.New)(raw, digest)
	case strings.HasPrefix(digest, "$6$"):
		return cryptVerifier(sha512_crypt.New)(raw, digest)
	case strings.HasPrefix(digest, "$2"):
		return verifyBcrypt(raw, digest)
	default:
		return false
	}
}

func verifyBcrypt(raw, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(raw)) == nil
}

func sha256Base64(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
