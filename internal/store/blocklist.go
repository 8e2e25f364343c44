package store

// BlockList holds directed block edges: blocker -> set of blocked user ids.
// Blocking is not symmetric; A blocking B hides B from A without affecting
// what B sees.
//
// The list is mutated only from the hub's event loop, so it needs no lock.
type BlockList struct {
	blocked map[string]map[string]struct{}
}

func NewBlockList() *BlockList {
	return &BlockList{
		blocked: make(map[string]map[string]struct{}),
	}
}

// Block inserts a directed edge. Idempotent.
func (b *BlockList) Block(userID, targetID string) {
	set, ok := b.blocked[userID]
	if !ok {
		set = make(map[string]struct{})
		b.blocked[userID] = set
	}
	set[targetID] = struct{}{}
}

// Unblock removes a directed edge. Idempotent.
func (b *BlockList) Unblock(userID, targetID string) {
	if set, ok := b.blocked[userID]; ok {
		delete(set, targetID)
		if len(set) == 0 {
			delete(b.blocked, userID)
		}
	}
}

// IsBlocked reports whether userID has blocked targetID.
func (b *BlockList) IsBlocked(userID, targetID string) bool {
	set, ok := b.blocked[userID]
	if !ok {
		return false
	}
	_, found := set[targetID]
	return found
}
