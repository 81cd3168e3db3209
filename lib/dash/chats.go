package dash

import (
	"time"

	"github.com/google/uuid"

	"github.com/veridian-dash/veridian/lib/entity"
	"github.com/veridian-dash/veridian/lib/lockmgr"
	"github.com/veridian-dash/veridian/lib/store"
)

const (
	ChatKind   = "chat"
	ChatsIndex = "chats"
)

var chatSchema = entity.Schema[ChatBoard]{
	Name:    ChatKind,
	Initial: func() ChatBoard { return ChatBoard{Messages: []ChatMessage{}} },
	ID:      func(b ChatBoard) string { return b.ID },
	SetID: func(b ChatBoard, id string) ChatBoard {
		b.ID = id
		return b
	},
}

// Chats is the indexed collection of chat boards.
type Chats struct {
	*entity.Collection[ChatBoard]
	locks lockmgr.ILockManager
	now   func() time.Time
}

// NewChats opens the chat board collection on a store. If locks is not nil messages are
// appended with an exclusive mutation and concurrent senders to one board get ErrBusy
// instead of losing messages.
func NewChats(s store.IStore, seed []ChatBoard, locks lockmgr.ILockManager) *Chats {
	return &Chats{
		Collection: entity.NewCollection(s, chatSchema, seed),
		locks:      locks,
		now:        time.Now,
	}
}

// CreateChat creates an empty board with a fresh id.
func (c *Chats) CreateChat(title string) (Chat, error) {
	board, err := c.Create(ChatBoard{Title: title, Messages: []ChatMessage{}})
	if err != nil {
		return Chat{}, err
	}
	return board.Chat(), nil
}

// ListChats lists the boards without their messages.
func (c *Chats) ListChats(cursor string, limit int) (entity.Page[Chat], error) {
	page, err := c.List(cursor, limit)
	if err != nil {
		return entity.Page[Chat]{}, err
	}
	chats := make([]Chat, len(page.Items))
	for i, b := range page.Items {
		chats[i] = b.Chat()
	}
	return entity.Page[Chat]{Items: chats, Next: page.Next}, nil
}

// Board returns the handle of one board.
func (c *Chats) Board(id string) *Board {
	return &Board{ref: c.Ref(id), chats: c}
}

// Board is a handle on one chat board.
type Board struct {
	ref   *entity.Entity[ChatBoard]
	chats *Chats
}

func (b *Board) ID() string {
	return b.ref.ID()
}

func (b *Board) Exists() (bool, error) {
	return b.ref.Exists()
}

// ListMessages returns the messages in insertion order.
func (b *Board) ListMessages() ([]ChatMessage, error) {
	board, err := b.ref.State()
	if err != nil {
		return nil, err
	}
	if board.Messages == nil {
		return []ChatMessage{}, nil
	}
	return board.Messages, nil
}

// SendMessage appends a message with a fresh id. Its timestamp is never lower than the one
// of the previous message, even if the clock steps back.
func (b *Board) SendMessage(userID, text string) (ChatMessage, error) {
	msg := ChatMessage{
		ID:     uuid.NewString(),
		ChatID: b.ref.ID(),
		UserID: userID,
		Text:   text,
	}
	appendMsg := func(board ChatBoard) (ChatBoard, error) {
		msg.TS = b.chats.now().UnixMilli()
		if n := len(board.Messages); n > 0 {
			msg.TS = max(msg.TS, board.Messages[n-1].TS)
		}
		board.Messages = append(board.Messages, msg)
		return board, nil
	}

	var err error
	if b.chats.locks != nil {
		_, err = b.ref.MutateExclusive(b.chats.locks, appendMsg)
	} else {
		_, err = b.ref.Mutate(appendMsg)
	}
	if err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}
