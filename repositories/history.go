// Package repositories persists received chat messages.
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"ttv-chat/domain"
)

// StoredMessage is the on-disk shape of one received chat line.
type StoredMessage struct {
	ID      uuid.UUID `json:"id"`
	Channel string    `json:"channel"`
	Author  string    `json:"author"`
	Color   *string   `json:"color,omitempty"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ChatHistory is an append-only BadgerDB log of messages, recorded as
// they flow through the controller proxy. It implements
// contract.MessageSink.
type ChatHistory struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int

	mu      sync.RWMutex
	channel string
}

func NewChatHistory(db *badger.DB, log *slog.Logger, limit *int) *ChatHistory {
	return &ChatHistory{db: db, log: log, limit: limit}
}

// SetChannel scopes subsequent writes and reads to one channel. Called by
// the facade on every join.
func (h *ChatHistory) SetChannel(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channel = channel
}

func (h *ChatHistory) currentChannel() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channel
}

// Consume persists one message. The key is
// "msg:{channel}:{timestamp_padded}:{uuid}":
//  1. the 19-digit zero padding makes lexicographical order chronological;
//  2. the UUID disambiguates two messages landing on the same nanosecond.
func (h *ChatHistory) Consume(msg domain.Message) error {
	stored := StoredMessage{
		ID:      uuid.New(),
		Channel: h.currentChannel(),
		Author:  msg.Author,
		Color:   msg.Color,
		Content: msg.Content,
		At:      time.Now().UTC(),
	}

	key := fmt.Sprintf("msg:%s:%019d:%s", stored.Channel, stored.At.UnixNano(), stored.ID)
	value, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return h.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Recent returns stored messages for the current channel, newest first,
// up to the configured limit, along with a cursor for the next page.
// Thanks to the padded timestamp in the key a reverse prefix scan walks
// messages in time order.
func (h *ChatHistory) Recent(cursor *string) ([]StoredMessage, *string, error) {
	var messages []StoredMessage
	var lastKey string

	prefixStr := fmt.Sprintf("msg:%s:", h.currentChannel())
	prefix := []byte(prefixStr)

	err := h.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		if cursor == nil {
			// Position past the newest possible timestamp, then walk back.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		} else {
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if h.limit != nil && len(messages) == *h.limit {
				h.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *h.limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				var stored StoredMessage
				if err := json.Unmarshal(value, &stored); err != nil {
					return err
				}
				messages = append(messages, stored)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}
