package gcp

import (
	"strings"

	"github.com/fnforge/fnforge/internal/constants"
)

// InvokerMembers translates an endpoint's invoker list into IAM members.
// "public" becomes allUsers, "private" contributes nothing, and anything
// else is treated as a service account email. A nil result means no binding
// should be written.
func InvokerMembers(invoker []string) []string {
	var members []string
	for _, entry := range invoker {
		switch entry {
		case constants.InvokerPublic:
			members = append(members, constants.MemberAllUsers)
		case constants.InvokerPrivate:
			// Explicitly private: no members.
		default:
			if strings.Contains(entry, "@") {
				members = append(members, "serviceAccount:"+entry)
			} else {
				members = append(members, entry)
			}
		}
	}
	return members
}
