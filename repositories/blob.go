package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const blobPrefix = "blob:"

var _ contract.IBlobRepository = BlobRepository{}

// BlobRepository is the content store behind attachments.
// Storing twice under the same name replaces the previous content.
type BlobRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBlobRepository(db *badger.DB, log *slog.Logger) BlobRepository {
	return BlobRepository{db: db, log: log}
}

func blobKey(name string) []byte {
	return []byte(blobPrefix + name)
}

// StoreBlob returns once the badger transaction is committed.
func (b BlobRepository) StoreBlob(attachment domain.Attachment) error {
	value := encodeBlob(attachment)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(attachment.Name), value)
	})
	if err != nil {
		return err
	}
	b.log.Debug("Blob stored", "name", attachment.Name, "size", attachment.Size)
	return nil
}

func (b BlobRepository) GetBlob(name string) (domain.Attachment, error) {
	var attachment domain.Attachment
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			attachment, err = decodeBlob(value)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Attachment{}, errors.ErrAttachmentNotFound
	}
	if err != nil {
		return domain.Attachment{}, err
	}
	return attachment, nil
}
