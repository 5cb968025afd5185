package auth

import "strings"

// CredentialKind tags the two bearer credential schemes the API accepts.
type CredentialKind int

const (
	// CredentialJWT is a signed session token from the login flow.
	CredentialJWT CredentialKind = iota
	// CredentialPAT is a long-lived personal access token ("pat_" prefix).
	CredentialPAT
)

func (k CredentialKind) String() string {
	if k == CredentialPAT {
		return "pat"
	}
	return "jwt"
}

// patMarker is the grammar prefix that distinguishes a PAT from a JWT.
const patMarker = "pat_"

// Credential is a classified bearer credential. Classification happens once
// at the boundary; everything downstream switches on Kind instead of
// re-sniffing string prefixes.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// ClassifyCredential decides which validator applies to a raw bearer token.
// Anything that does not carry the PAT marker is treated as a JWT and left
// to signature verification to reject.
func ClassifyCredential(raw string) Credential {
	if strings.HasPrefix(raw, patMarker) {
		return Credential{Kind: CredentialPAT, Value: raw}
	}
	return Credential{Kind: CredentialJWT, Value: raw}
}
