package domain

// Domain is a subject category. The set is closed: every valid value is
// declared below and returned by All.
type Domain string

const (
	CompSec Domain = "CompSec"
	History Domain = "History"
	Social  Domain = "Social"
)

// registry maps each domain to the collection its records live in.
var registry = []struct {
	domain     Domain
	collection string
}{
	{CompSec, "compsecs"},
	{History, "histories"},
	{Social, "socials"},
}

// All returns the known domains in registry order.
func All() []Domain {
	out := make([]Domain, 0, len(registry))
	for _, entry := range registry {
		out = append(out, entry.domain)
	}
	return out
}

// Parse resolves a domain name. Matching is exact and case-sensitive.
func Parse(name string) (Domain, error) {
	for _, entry := range registry {
		if string(entry.domain) == name {
			return entry.domain, nil
		}
	}
	return "", ErrUnknownDomain
}

// Collection returns the persistence handle for the domain, or "" if the
// value did not come from Parse or All.
func (d Domain) Collection() string {
	for _, entry := range registry {
		if entry.domain == d {
			return entry.collection
		}
	}
	return ""
}

// Valid reports whether d is a registered domain.
func (d Domain) Valid() bool {
	return d.Collection() != ""
}

func (d Domain) String() string { return string(d) }
