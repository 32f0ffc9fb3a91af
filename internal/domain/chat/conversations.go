package chat

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Display names used when the real identity is withheld or unavailable
const (
	AnonymousDisplayName = "Anonymous"
	UnknownDisplayName   = "Unknown"
)

// Participant is a user as a particular observer is allowed to see them.
// UserID is uuid.Nil when the participant is anonymous.
type Participant struct {
	UserID      uuid.UUID
	Disclosure  Disclosure
	DisplayName string
	AvatarURL   *string
}

// Conversation is one entry in the observer's conversation list
type Conversation struct {
	Room           *Room
	Partner        Participant
	SelfDefault    Disclosure
	Post           *PostInfo
	LastMessage    *Message // nil for a room without visible messages
	UnreadCount    int
	LastActivityAt time.Time
}

// MessageView is a message rendered for one observer
type MessageView struct {
	Message *Message
	IsMine  bool
	Sender  Participant
}

// ChatWindow is a room as the observer sees it
type ChatWindow struct {
	Room        *Room
	Partner     Participant
	SelfDefault Disclosure
	PartnerLeft bool
	Post        *PostInfo
	Messages    []*MessageView
}

// lookupCache memoizes post and profile lookups within one request
type lookupCache struct {
	posts    map[uuid.UUID]*PostInfo
	profiles map[uuid.UUID]*ProfileInfo
}

func newLookupCache() *lookupCache {
	return &lookupCache{
		posts:    make(map[uuid.UUID]*PostInfo),
		profiles: make(map[uuid.UUID]*ProfileInfo),
	}
}

func (s *Service) cachedPost(ctx context.Context, cache *lookupCache, room *Room) *PostInfo {
	if !room.RelatedPostID.Valid {
		return nil
	}
	id := room.RelatedPostID.UUID
	if post, ok := cache.posts[id]; ok {
		return post
	}
	post := s.lookupPost(ctx, id)
	cache.posts[id] = post
	return post
}

func (s *Service) participant(ctx context.Context, cache *lookupCache, userID uuid.UUID, disclosure Disclosure) Participant {
	if disclosure.IsAnonymous() {
		return Participant{Disclosure: DisclosureAnonymous, DisplayName: AnonymousDisplayName}
	}

	profile, ok := cache.profiles[userID]
	if !ok {
		profile = s.lookupProfile(ctx, userID)
		cache.profiles[userID] = profile
	}

	p := Participant{UserID: userID, Disclosure: DisclosureReal, DisplayName: UnknownDisplayName}
	if profile != nil {
		if profile.DisplayName != "" {
			p.DisplayName = profile.DisplayName
		}
		p.AvatarURL = profile.AvatarURL
	}
	return p
}

func (s *Service) loadState(ctx context.Context, cache *lookupCache, room *Room) (RoomState, error) {
	members, err := s.repo.GetMembers(ctx, room.ID)
	if err != nil {
		return RoomState{}, storeErr(err)
	}
	messages, err := s.repo.ListMessagesByRoom(ctx, room.ID)
	if err != nil {
		return RoomState{}, storeErr(err)
	}
	return RoomState{
		Room:        room,
		Memberships: members,
		Messages:    messages,
		Post:        s.cachedPost(ctx, cache, room),
	}, nil
}

// ListConversations returns the observer's active rooms, most recent first.
// Rooms whose counterpart has left are omitted.
func (s *Service) ListConversations(ctx context.Context, observerID uuid.UUID) ([]*Conversation, error) {
	rooms, err := s.repo.ListActiveRoomsByUser(ctx, observerID)
	if err != nil {
		return nil, storeErr(err)
	}

	cache := newLookupCache()
	result := make([]*Conversation, 0, len(rooms))
	for _, room := range rooms {
		state, err := s.loadState(ctx, cache, room)
		if err != nil {
			return nil, err
		}

		mine := state.MembershipOf(observerID)
		partner := state.CounterpartMembership(observerID)
		if !mine.IsActive() || !partner.IsActive() {
			continue
		}

		conv := &Conversation{
			Room:           room,
			Partner:        s.participant(ctx, cache, partner.UserID, PartnerDisclosure(state, observerID)),
			SelfDefault:    SelfDisclosure(state, observerID),
			Post:           state.Post,
			LastActivityAt: room.CreatedAt,
		}

		visible := visibleTo(mine, state.Messages)
		for _, m := range visible {
			if m.ReceiverID == observerID && !m.IsRead {
				conv.UnreadCount++
			}
		}
		if len(visible) > 0 {
			conv.LastMessage = visible[len(visible)-1]
			conv.LastActivityAt = conv.LastMessage.CreatedAt
		}

		result = append(result, conv)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})

	return result, nil
}

// ChatWindow renders the room for the observer with per-message identities
func (s *Service) ChatWindow(ctx context.Context, roomID, observerID uuid.UUID) (*ChatWindow, error) {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, storeErr(err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	cache := newLookupCache()
	state, err := s.loadState(ctx, cache, room)
	if err != nil {
		return nil, err
	}

	mine := state.MembershipOf(observerID)
	if mine == nil {
		return nil, ErrNotRoomMember
	}
	partner := state.CounterpartMembership(observerID)

	window := &ChatWindow{
		Room:        room,
		SelfDefault: SelfDisclosure(state, observerID),
		PartnerLeft: !partner.IsActive(),
		Post:        state.Post,
	}
	if partner != nil {
		window.Partner = s.participant(ctx, cache, partner.UserID, PartnerDisclosure(state, observerID))
	} else {
		window.Partner = Participant{Disclosure: DisclosureAnonymous, DisplayName: UnknownDisplayName}
	}

	visible := visibleTo(mine, state.Messages)
	window.Messages = make([]*MessageView, 0, len(visible))
	for _, m := range visible {
		disclosure := DisclosureAnonymous
		if ShowRealForMessage(state, m) {
			disclosure = DisclosureReal
		}
		window.Messages = append(window.Messages, &MessageView{
			Message: m,
			IsMine:  m.SenderID == observerID,
			Sender:  s.participant(ctx, cache, m.SenderID, disclosure),
		})
	}

	return window, nil
}
