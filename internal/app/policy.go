package app

import (
	"github.com/linzo/meet/internal/core"
	"github.com/linzo/meet/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what to do with a member whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member core.MemberSession) BackpressureAction
}

// SimplePolicy kicks slow consumers; a stuck signaling channel means
// the member cannot follow presence anyway.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, core.MemberSession) BackpressureAction {
	return KickMember
}
