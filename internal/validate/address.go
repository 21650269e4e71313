package validate

import "strings"

// Address reports whether addr looks like a deliverable email address.
//
// The check is deterministic and makes no network calls: the address must
// contain exactly one "@", both the local part and the domain must be
// non-empty, and the domain must contain at least one "." with non-empty
// labels around it.
func Address(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}

	local, domain, ok := strings.Cut(addr, "@")
	if !ok || strings.Contains(domain, "@") {
		return false
	}
	if local == "" || domain == "" {
		return false
	}

	// The domain needs at least one dot separating non-empty labels.
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" {
			return false
		}
	}

	return true
}

// Addresses reports whether every address in the set is valid.
// An empty set is rejected: outbound mail always needs a recipient.
func Addresses(addrs []string) bool {
	if len(addrs) == 0 {
		return false
	}
	for _, a := range addrs {
		if !Address(a) {
			return false
		}
	}
	return true
}
