package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

const messagePrefix = "msg:"

var _ contract.IMessageRepository = MessageRepository{}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// messageKey is formatted as "msg:{id_padded}".
// The 20-digit zero padding covers the whole uint64 range and keeps the
// lexicographical order of badger keys equal to the id order.
func messageKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, uint64(id)))
}

// StoreMessage persists a message under its id.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	value := encodeMessage(message)
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.ID), value)
	})
}

// GetMessages retrieves messages with after < id <= upTo using a prefix scan.
// Thanks to the padded id in the key, messages come back in ascending order.
// It stops collecting messages once limit is reached (limit <= 0 means no limit).
func (m MessageRepository) GetMessages(after, upTo domain.MessageID, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	if upTo <= after {
		return nil, nil
	}
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(messageKey(after + 1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var message domain.Message
			err := it.Item().Value(func(value []byte) error {
				decoded, err := decodeMessage(value)
				message = decoded
				return err
			})
			if err != nil {
				return err
			}
			if message.ID > upTo {
				break
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// LastMessageID returns the highest stored id, or domain.Beginning on an empty log.
func (m MessageRepository) LastMessageID() (domain.MessageID, error) {
	var last domain.MessageID
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		// '~' sorts after every digit, so a reverse seek lands on the last message
		it.Seek(append([]byte(messagePrefix), '~'))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		id, err := strconv.ParseUint(string(it.Item().Key()[len(prefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupted message key %q: %w", it.Item().Key(), err)
		}
		last = domain.MessageID(id)
		return nil
	})
	if err != nil {
		return domain.Beginning, err
	}
	m.log.Debug("Message log recovered", "last_id", last)
	return last, nil
}
