package chat

import "github.com/google/uuid"

// Disclosure says whether a participant is shown by real identity
type Disclosure string

const (
	DisclosureReal      Disclosure = "real"
	DisclosureAnonymous Disclosure = "anonymous"
)

// IsAnonymous reports whether the participant should be hidden
func (d Disclosure) IsAnonymous() bool { return d == DisclosureAnonymous }

// RoomState is everything the identity rules look at for one room.
// Messages must hold the full log ordered by created_at ascending.
type RoomState struct {
	Room        *Room
	Memberships []*Membership
	Messages    []*Message
	Post        *PostInfo // nil when the room has no post or the post is gone
}

// Initiator returns the sender of the first message, or the room creator
// while the room is still empty.
func (s RoomState) Initiator() uuid.UUID {
	if len(s.Messages) > 0 {
		return s.Messages[0].SenderID
	}
	if s.Room != nil && s.Room.CreatorID.Valid {
		return s.Room.CreatorID.UUID
	}
	return uuid.Nil
}

// Counterpart returns the other participant for the given user
func (s RoomState) Counterpart(userID uuid.UUID) uuid.UUID {
	if m := s.CounterpartMembership(userID); m != nil {
		return m.UserID
	}
	return uuid.Nil
}

// CounterpartMembership returns the other participant's membership
func (s RoomState) CounterpartMembership(userID uuid.UUID) *Membership {
	for _, m := range s.Memberships {
		if m.UserID != userID {
			return m
		}
	}
	return nil
}

// MembershipOf returns the membership of the given user
func (s RoomState) MembershipOf(userID uuid.UUID) *Membership {
	for _, m := range s.Memberships {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// Target is the side the room's contract was made about: the non-initiator
func (s RoomState) Target() uuid.UUID {
	initiator := s.Initiator()
	if initiator == uuid.Nil {
		return uuid.Nil
	}
	return s.Counterpart(initiator)
}

func (s RoomState) isAnonymousPostAuthor(userID uuid.UUID) bool {
	return s.Room.IsPostScoped() && s.Post != nil && s.Post.IsAnonymous && s.Post.AuthorID == userID
}

func (s RoomState) isPostAuthor(userID uuid.UUID) bool {
	return s.Post != nil && s.Post.AuthorID == userID
}

// sentTags reports whether the user ever sent an anonymous and a named message
func (s RoomState) sentTags(userID uuid.UUID) (anonymous, named bool) {
	for _, m := range s.Messages {
		if m.SenderID != userID {
			continue
		}
		if m.IsAnonymous {
			anonymous = true
		} else {
			named = true
		}
	}
	return anonymous, named
}

// SelfDisclosure returns the default tag for the observer's next message
func SelfDisclosure(s RoomState, observer uuid.UUID) Disclosure {
	anonymous, named := s.sentTags(observer)
	if anonymous {
		return DisclosureAnonymous
	}
	if named {
		return DisclosureReal
	}

	if s.Initiator() == observer {
		if s.Room.Anonymous {
			return DisclosureAnonymous
		}
		return DisclosureReal
	}

	if s.isAnonymousPostAuthor(observer) {
		return DisclosureAnonymous
	}
	// Post lookup failed: the recorded target posture is the best remaining signal
	if s.Room.IsPostScoped() && s.Post == nil && s.Room.TargetAnonymous.IsTrue() {
		return DisclosureAnonymous
	}
	return DisclosureReal
}

// PartnerDisclosure returns how the observer sees the other participant.
// Rules are evaluated in order and the first match wins. Post context is
// checked even before anyone has spoken, so an empty room never exposes an
// anonymous author.
func PartnerDisclosure(s RoomState, observer uuid.UUID) Disclosure {
	initiator := s.Initiator()
	isInitiator := initiator != uuid.Nil && initiator == observer
	partner := s.Counterpart(observer)

	// contract promised the initiator a named counterpart
	if s.Room.TargetAnonymous.IsFalse() && isInitiator {
		return DisclosureReal
	}

	anonymous, named := s.sentTags(partner)
	// once named, never hidden again
	if named {
		return DisclosureReal
	}
	if anonymous || s.isAnonymousPostAuthor(partner) {
		return DisclosureAnonymous
	}
	if s.Room.IsPostScoped() && !s.isPostAuthor(partner) {
		return DisclosureAnonymous
	}

	if isInitiator {
		return DisclosureReal
	}
	// the partner started the room; honour the posture they chose
	if s.Room.Anonymous {
		return DisclosureAnonymous
	}
	return DisclosureReal
}

// ShowRealForMessage decides whether a single message is rendered with the
// sender's real identity. A room whose target is contractually named
// overrides an anonymous tag on the target's own messages.
func ShowRealForMessage(s RoomState, msg *Message) bool {
	if !msg.IsAnonymous {
		return true
	}
	return s.Room.TargetAnonymous.IsFalse() && msg.SenderID == s.Target()
}
