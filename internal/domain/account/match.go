package account

// Matches reports whether a stored account and an account reported by the
// institution describe the same real account. The institution issues a new
// account id on every re-link, so identity is mask, type and subtype.
// An empty mask never matches.
func Matches(stored *Account, mask, accountType, subtype string) bool {
	if stored == nil || mask == "" || stored.Mask != mask {
		return false
	}
	if stored.Type != accountType {
		return false
	}
	return stored.Subtype == subtype
}

// Matcher finds stored accounts for reported accounts, handing out each
// stored account at most once.
type Matcher struct {
	candidates []*Account
	claimed    map[string]bool
}

// NewMatcher creates a matcher over the stored accounts of one linked item.
func NewMatcher(stored []*Account) *Matcher {
	return &Matcher{candidates: stored, claimed: make(map[string]bool, len(stored))}
}

// Claim returns the first unclaimed stored account matching the description,
// or nil.
func (m *Matcher) Claim(mask, accountType, subtype string) *Account {
	for _, candidate := range m.candidates {
		if m.claimed[candidate.ID] {
			continue
		}
		if Matches(candidate, mask, accountType, subtype) {
			m.claimed[candidate.ID] = true
			return candidate
		}
	}
	return nil
}

// Unclaimed returns the stored accounts no reported account matched.
func (m *Matcher) Unclaimed() []*Account {
	var out []*Account
	for _, candidate := range m.candidates {
		if !m.claimed[candidate.ID] {
			out = append(out, candidate)
		}
	}
	return out
}
