package core

import "fmt"

// IdentifierPool hands out small integer ids, reusing released slots first.
// Id 0 is never handed out so callers can use it as a "none" sentinel.
type IdentifierPool struct {
	owners []interface{}
	max    uint32
}

func NewIdentifierPool(max uint32) *IdentifierPool {
	return &IdentifierPool{
		owners: make([]interface{}, 1, 16),
		max:    max,
	}
}

func (ip *IdentifierPool) Acquire(owner interface{}) (uint32, error) {
	if owner == nil {
		return 0, fmt.Errorf("identifier acquire requires a non-nil owner")
	}
	length := uint32(len(ip.owners))
	for i := uint32(1); i < length; i++ {
		// Existing free spot. Take it.
		if ip.owners[i] == nil {
			ip.owners[i] = owner
			return i, nil
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	if ip.max > 0 && length > ip.max {
		return 0, fmt.Errorf("identifier acquire: %w (max=%d)", ErrTargetLimit, ip.max)
	}
	ip.owners = append(ip.owners, owner)
	return length, nil
}

func (ip *IdentifierPool) Release(id uint32) error {
	length := uint32(len(ip.owners))
	if id == 0 || id >= length {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, length-1)
	}
	// Just zero out the entry, making it available for use.
	ip.owners[id] = nil
	return nil
}

// Owner returns the owner registered for id, or nil.
func (ip *IdentifierPool) Owner(id uint32) interface{} {
	if id == 0 || id >= uint32(len(ip.owners)) {
		return nil
	}
	return ip.owners[id]
}
