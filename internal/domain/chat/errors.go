package chat

import "errors"

var (
	ErrRoomNotFound        = errors.New("chat room not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrNotRoomMember       = errors.New("you are not a member of this chat")
	ErrCannotChatSelf      = errors.New("cannot start chat with yourself")
	ErrBlocked             = errors.New("cannot send message - user has blocked you")
	ErrEmptyContent        = errors.New("message content is empty")
	ErrNoActiveCounterpart = errors.New("chat partner has left the conversation")
	ErrDuplicateRoom       = errors.New("chat room already exists")
	ErrStoreUnavailable    = errors.New("chat store unavailable")
)
