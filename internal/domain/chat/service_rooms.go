package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ResolveInput describes who wants to talk to whom and under which posture
type ResolveInput struct {
	SenderID             uuid.UUID
	ReceiverID           uuid.UUID
	SenderWantsAnonymous bool
	// TargetIsAnonymous describes the receiver's posture in the originating
	// context, e.g. the post author posted anonymously
	TargetIsAnonymous bool
	RelatedPostID     *uuid.UUID
}

// RoomResult is returned by CreateOrGetRoom
type RoomResult struct {
	Room *Room
	// Sent is set when an initial message was delivered
	Sent *SendResult
}

// ResolveRoom finds an active room between sender and receiver under the same
// anonymity contract, or creates one. Creation is refused when the receiver
// has blocked the sender.
func (s *Service) ResolveRoom(ctx context.Context, in ResolveInput) (*Room, error) {
	if in.SenderID == in.ReceiverID {
		return nil, ErrCannotChatSelf
	}

	contract := DeriveContract(in.SenderWantsAnonymous, in.TargetIsAnonymous, in.RelatedPostID)

	room, err := s.findRoom(ctx, in.SenderID, in.ReceiverID, contract)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	blocked, err := s.isBlocked(ctx, in.ReceiverID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	room, err = s.createRoom(ctx, in.SenderID, in.ReceiverID, contract)
	if errors.Is(err, ErrDuplicateRoom) {
		// lost a creation race; the winner's room is the match
		room, err = s.findRoom(ctx, in.SenderID, in.ReceiverID, contract)
		if err != nil {
			return nil, err
		}
		if room == nil {
			return nil, storeErr(ErrDuplicateRoom)
		}
		return room, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}

	s.hub.Publish(Event{
		Type:    EventMembershipChanged,
		RoomID:  room.ID,
		UserIDs: []uuid.UUID{in.SenderID, in.ReceiverID},
		At:      room.CreatedAt,
	})

	return room, nil
}

func (s *Service) findRoom(ctx context.Context, senderID, receiverID uuid.UUID, contract RoomContract) (*Room, error) {
	rooms, err := s.repo.ListActiveRoomsBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, storeErr(err)
	}
	for _, room := range rooms {
		if contract.Matches(room) {
			return room, nil
		}
	}
	return nil, nil
}

func (s *Service) createRoom(ctx context.Context, senderID, receiverID uuid.UUID, contract RoomContract) (*Room, error) {
	key := contract.Key(senderID, receiverID)
	gen, err := s.repo.NextRoomGeneration(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.now()
	room := &Room{
		ID:              uuid.New(),
		Anonymous:       contract.Anonymous,
		TargetAnonymous: contract.TargetAnonymous,
		CreatorID:       uuid.NullUUID{UUID: senderID, Valid: true},
		RoomKey:         key,
		Generation:      gen,
		CreatedAt:       now,
	}
	if contract.RelatedPostID != nil {
		room.RelatedPostID = uuid.NullUUID{UUID: *contract.RelatedPostID, Valid: true}
	}

	members := make([]*Membership, 0, 2)
	for _, userID := range []uuid.UUID{senderID, receiverID} {
		members = append(members, &Membership{
			ID:          uuid.New(),
			RoomID:      room.ID,
			UserID:      userID,
			JoinedAt:    now,
			VisibleFrom: room.CreatedAt,
		})
	}

	if err := s.repo.CreateRoom(ctx, room, members); err != nil {
		return nil, err
	}
	return room, nil
}

// CreateOrGetRoom resolves a room for the composer. When the post resolves,
// the target posture always comes from the post; the client's
// target_anonymous is only honoured without post context. A post that
// cannot be found drops the post context.
func (s *Service) CreateOrGetRoom(ctx context.Context, senderID uuid.UUID, req *CreateRoomRequest) (*RoomResult, error) {
	in := ResolveInput{
		SenderID:             senderID,
		ReceiverID:           req.RecipientID,
		SenderWantsAnonymous: req.Anonymous,
	}

	var post *PostInfo
	if req.RelatedPostID != nil {
		post = s.lookupPost(ctx, *req.RelatedPostID)
	}
	switch {
	case post != nil:
		in.RelatedPostID = &post.ID
		in.TargetIsAnonymous = post.IsAnonymous && post.AuthorID == req.RecipientID
	case req.TargetAnonymous != nil:
		in.TargetIsAnonymous = *req.TargetAnonymous
	}

	room, err := s.ResolveRoom(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &RoomResult{Room: room}
	if strings.TrimSpace(req.Message) != "" {
		sent, err := s.Append(ctx, room.ID, senderID, req.Message, req.Anonymous)
		if err != nil {
			return nil, err
		}
		result.Sent = sent
	}

	return result, nil
}

func (s *Service) lookupPost(ctx context.Context, postID uuid.UUID) *PostInfo {
	if s.posts == nil {
		return nil
	}
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		log.Warn().Err(err).Str("post_id", postID.String()).Msg("Post lookup failed, continuing without post context")
		return nil
	}
	return post
}

func (s *Service) lookupProfile(ctx context.Context, userID uuid.UUID) *ProfileInfo {
	if s.profiles == nil {
		return nil
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Profile lookup failed")
		return nil
	}
	return profile
}
