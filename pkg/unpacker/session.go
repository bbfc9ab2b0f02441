package unpacker

import (
	"github.com/graphpack/pkg/collections"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/identity"
)

// session is the private state of one Unpack call. It is the
// registry.UnpackContext seen by shell and completion functions.
type session struct {
	slots    []*slot
	index    map[identity.InstanceID]int
	pending  *collections.Bitset
	building bool
}

func newSession(n int) *session {
	return &session{
		slots:   make([]*slot, 0, n),
		index:   make(map[identity.InstanceID]int, n),
		pending: collections.NewBitset(n),
	}
}

func (s *session) lookup(r identity.Reference) *slot {
	if r.IsNil() {
		return nil
	}
	i, ok := s.index[r.ID]
	if !ok {
		return nil
	}
	return s.slots[i]
}

func (s *session) IsAvailable(r identity.Reference) bool {
	sl := s.lookup(r)
	return sl != nil && sl.state >= Shell
}

func (s *session) IsFinished(r identity.Reference) bool {
	sl := s.lookup(r)
	return sl != nil && sl.state == Finished
}

func (s *session) Resolve(r identity.Reference) (any, error) {
	if r.IsNil() {
		return nil, nil
	}
	if s.building {
		return nil, apperrors.Newf(apperrors.CodeContractViolation,
			"reference %s resolved during shell construction", r)
	}
	sl := s.lookup(r)
	if sl == nil {
		return nil, apperrors.Newf(apperrors.CodeStructural, "reference %s names no entity in this session", r)
	}
	if sl.state < Shell {
		return nil, apperrors.Newf(apperrors.CodeContractViolation,
			"reference %s resolved in state %s", r, sl.state)
	}
	return sl.value, nil
}

func (s *session) LocalID(r identity.Reference) (identity.InstanceID, bool) {
	sl := s.lookup(r)
	if sl == nil {
		return identity.InstanceID{}, false
	}
	return sl.local, true
}
