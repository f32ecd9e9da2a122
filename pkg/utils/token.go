package utils

import "github.com/google/uuid"

// NewApprovalToken returns a fresh opaque token for an approval request.
// The token is the only credential for resolving the request, so it must
// be unguessable; a random UUID gives 122 bits of entropy.
func NewApprovalToken() string {
	return uuid.NewString()
}
