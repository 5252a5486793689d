package chatmd

import "errors"

var (
	// ErrCancelled is reported by a session that was cancelled.
	ErrCancelled = errors.New("chatmd: response cancelled")
	// ErrNoClient is reported when a session has no chat client for its mode.
	ErrNoClient = errors.New("chatmd: no chat client configured")
	// ErrSessionClosed is returned by a closed Conversation.
	ErrSessionClosed = errors.New("chatmd: conversation closed")
	// ErrMessageNotFound is returned by Retry for an unknown message ID.
	ErrMessageNotFound = errors.New("chatmd: message not found")
)

// CancelledText is the error text shown for a cancelled response.
const CancelledText = "The response was cancelled"
