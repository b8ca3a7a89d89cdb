package expansion

// dedupeCrossTier implements its "a phrase appearing in multiple
// tiers is kept at the highest tier; lower occurrences are dropped (their
// parents retain other children)". Dropped duplicates remain in the
// returned slice (tagged Dropped) so processing_stats can still count them.
func dedupeCrossTier(candidates []*Candidate) []*Candidate {
	best := make(map[string]*Candidate, len(candidates))
	for _, c := range candidates {
		existing, ok := best[c.Phrase]
		if !ok || c.Tier.Rank() > existing.Tier.Rank() {
			best[c.Phrase] = c
		}
	}
	for _, c := range candidates {
		if best[c.Phrase] != c {
			c.drop(DropReasonDuplicate)
			continue
		}
		c.advance(StateDeduped)
	}
	return candidates
}
