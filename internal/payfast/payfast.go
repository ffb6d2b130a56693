package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignatureField is the form field the gateway uses to carry the MD5 digest.
const SignatureField = "signature"

// Sign computes the gateway signature over a flat field set: keys are sorted
// byte-wise, each value is trimmed and url-encoded, pairs are joined with '&'
// and a non-empty passphrase is appended the same way. The digest is MD5
// because that is what the gateway's ITN contract requires.
func Sign(fields map[string]string, passphrase string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encode(fields[k]))
	}
	if passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(encode(passphrase))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify checks the signature carried inside fields against a recomputation
// over the remaining fields. A missing or empty signature verifies as false;
// malformed input never errors, callers must check the boolean.
func Verify(fields map[string]string, passphrase string) bool {
	got, ok := fields[SignatureField]
	if !ok || got == "" {
		return false
	}

	rest := make(map[string]string, len(fields)-1)
	for k, v := range fields {
		if k == SignatureField {
			continue
		}
		rest[k] = v
	}

	want := Sign(rest, passphrase)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func encode(v string) string {
	return url.QueryEscape(strings.TrimSpace(v))
}
