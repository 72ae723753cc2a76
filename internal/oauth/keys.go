// Package oauth provides the key derivation used by the token stores:
// content-addressed token ids and authentication fingerprints. All keys
// must be stable across processes and deployments because they are the
// cross-instance lookup keys of the backing store.
package oauth

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
)

// HashToken derives the storage key for a token value. Empty input maps
// to the empty key, meaning "no record", not an error. MD5 is kept for
// key compatibility with existing deployments; the digest is a lookup
// key, not a security control.
func HashToken(value string) string {
	if value == "" {
		return ""
	}
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

// AuthenticationKey derives the fingerprint correlating a token to the
// (client, principal, scope) triple it was issued under. Client-only
// grants fingerprint with an empty user name.
func AuthenticationKey(auth domain.Authentication) string {
	return digestPairs(
		"client_id", auth.ClientID,
		"scope", canonicalScope(auth.Scopes),
		"username", auth.UserName,
	)
}

// PartnerKey derives the fingerprint correlating a partner token to the
// (partner resource, local principal) pair that obtained it.
func PartnerKey(partner domain.Partner, auth domain.Authentication) string {
	return digestPairs(
		"resource_id", partner.PartnerID,
		"client_id", partner.ClientID,
		"scope", canonicalScope(partner.Scopes),
		"username", auth.UserName,
	)
}

func canonicalScope(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func digestPairs(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(pairs[i])
		b.WriteByte('=')
		b.WriteString(pairs[i+1])
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
