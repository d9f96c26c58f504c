package ledger

import "github.com/bioneo/stakeledger/internal/rewards"

// Entry is one stake held in a user ledger slot.
type Entry struct {
	rewards.Position

	Tier int
	// Principal is the amount of Asset held in custody for this entry: the
	// staked LP amount, or 1 for an NFT.
	Principal uint64
	Asset     string
	// Rarity is set for NFT stakes only; Shares equals it.
	Rarity uint64

	StartTime    uint64
	MaturityTime uint64
	Active       bool
}

func (e *Entry) Matured(now uint64) bool {
	return now >= e.MaturityTime
}
