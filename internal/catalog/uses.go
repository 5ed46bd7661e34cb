package catalog

// Uses maps discount ids to their remaining redemptions. A missing entry
// means the catalog cap is untouched.
type Uses map[string]int

// Remaining returns the uses left for d, never below 0.
func (u Uses) Remaining(d Discount) int {
	n, ok := u[d.ID]
	if !ok {
		return d.Uses
	}
	return max(0, n)
}
