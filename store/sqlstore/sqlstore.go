// Package sqlstore is a reference implementation of store.Store over
// GORM and SQLite: one wide row per message, JSON-serialized for exact
// round-tripping, with the descriptor's filterable fields promoted to
// indexed columns so Query can push predicates down to SQL instead of
// scanning every row in process.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/dwn-project/dwn-core/identity"
	"github.com/dwn-project/dwn-core/logging"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/store"
)

var logger = logging.Logger("store/sqlstore")

// storedMessage is the GORM row for one message. DescriptorJSON and
// AuthorizationJSON carry the full fidelity round-trip and EncodedData
// the raw record data; besides the (tenant, message CID) key, every
// other column mirrors a store.Filter field so Query can express it as
// SQL.
type storedMessage struct {
	Tenant    string `gorm:"primarykey"`
	MessageCID string `gorm:"primarykey;column:message_cid"`

	Interface         string `gorm:"index"`
	Method            string `gorm:"index"`
	Protocol          string `gorm:"index"`
	ProtocolPath      string `gorm:"index"`
	ContextID         string `gorm:"index;column:context_id"`
	RecordID          string `gorm:"index;column:record_id"`
	ParentID          string `gorm:"index;column:parent_id"`
	Recipient         string `gorm:"index"`
	Schema            string `gorm:"index"`
	DateCreated       string `gorm:"index"`
	MessageTimestamp  string `gorm:"index"`
	IsLatestBaseState bool   `gorm:"index"`
	IsInitialWrite    bool   `gorm:"index"`

	DescriptorJSON    []byte
	AuthorizationJSON []byte
	EncodedData       []byte
}

func (storedMessage) TableName() string {
	return "messages"
}

// Store wraps a *gorm.DB implementing store.Store.
type Store struct {
	db *gorm.DB
}

// Open creates (or reuses) a SQLite database at dsn and migrates the
// message table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}

	if err := db.AutoMigrate(&storedMessage{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

var _ store.Store = (*Store)(nil)

// Put durably stores msg. indexes may carry "isLatestBaseState" ("true"
// or "false"); the store computes isInitialWrite itself from msg, since
// that is a pure function of the message's own fields.
func (s *Store) Put(ctx context.Context, tenant string, msg *message.Message, indexes map[string]string) error {
	descriptorJSON, err := json.Marshal(msg.Descriptor)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal descriptor: %w", err)
	}

	authorizationJSON, err := json.Marshal(msg.Authorization)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal authorization: %w", err)
	}

	messageCID, err := msg.CID()
	if err != nil {
		return fmt.Errorf("sqlstore: compute message cid: %w", err)
	}

	isInitial, err := identity.IsInitialWrite(msg)
	if err != nil {
		return fmt.Errorf("sqlstore: determine initial write: %w", err)
	}

	row := &storedMessage{
		Tenant:            tenant,
		MessageCID:        messageCID,
		Interface:         string(msg.Descriptor.Interface),
		Method:            string(msg.Descriptor.Method),
		Protocol:          msg.Descriptor.Protocol,
		ProtocolPath:      msg.Descriptor.ProtocolPath,
		ContextID:         msg.ContextID,
		RecordID:          msg.RecordID,
		ParentID:          msg.Descriptor.ParentID,
		Recipient:         msg.Descriptor.Recipient,
		Schema:            msg.Descriptor.Schema,
		DateCreated:       msg.Descriptor.DateCreated,
		MessageTimestamp:  msg.Descriptor.MessageTimestamp,
		IsLatestBaseState: indexes["isLatestBaseState"] == "true",
		IsInitialWrite:    isInitial,
		DescriptorJSON:    descriptorJSON,
		AuthorizationJSON: authorizationJSON,
		EncodedData:       msg.EncodedData,
	}

	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("sqlstore: save message: %w", err)
	}

	return nil
}

// Get retrieves a single message by its descriptor CID.
func (s *Store) Get(ctx context.Context, tenant string, messageCID string) (*message.Message, bool, error) {
	var row storedMessage

	err := s.db.WithContext(ctx).Where("tenant = ? AND message_cid = ?", tenant, messageCID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: get message: %w", err)
	}

	msg, err := rowToMessage(row)
	if err != nil {
		return nil, false, err
	}

	return msg, true, nil
}

// Query returns every message matching at least one of filters.
func (s *Store) Query(ctx context.Context, tenant string, filters []store.Filter) ([]*message.Message, error) {
	seen := make(map[string]bool)

	var out []*message.Message

	for _, filter := range filters {
		query := s.db.WithContext(ctx).Where("tenant = ?", tenant)
		query = applyFilter(query, filter)

		var rows []storedMessage

		if err := query.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("sqlstore: query messages: %w", err)
		}

		for _, row := range rows {
			if seen[row.MessageCID] {
				continue
			}

			seen[row.MessageCID] = true

			msg, err := rowToMessage(row)
			if err != nil {
				return nil, err
			}

			out = append(out, msg)
		}
	}

	return out, nil
}

// Delete removes a message by its descriptor CID.
func (s *Store) Delete(ctx context.Context, tenant string, messageCID string) error {
	err := s.db.WithContext(ctx).Where("tenant = ? AND message_cid = ?", tenant, messageCID).Delete(&storedMessage{}).Error
	if err != nil {
		return fmt.Errorf("sqlstore: delete message: %w", err)
	}

	return nil
}

//nolint:cyclop
func applyFilter(query *gorm.DB, filter store.Filter) *gorm.DB {
	if filter.Interface != "" {
		query = query.Where("interface = ?", string(filter.Interface))
	}

	if filter.Method != "" {
		query = query.Where("method = ?", string(filter.Method))
	}

	if filter.Protocol != "" {
		query = query.Where("protocol = ?", filter.Protocol)
	}

	if filter.ProtocolPath != "" {
		query = query.Where("protocol_path = ?", filter.ProtocolPath)
	}

	if filter.ContextID != "" {
		query = query.Where("context_id = ?", filter.ContextID)
	}

	if filter.RecordID != "" {
		query = query.Where("record_id = ?", filter.RecordID)
	}

	if filter.ParentID != "" {
		query = query.Where("parent_id = ?", filter.ParentID)
	}

	if filter.Recipient != "" {
		query = query.Where("recipient = ?", filter.Recipient)
	}

	if filter.Schema != "" {
		query = query.Where("schema = ?", filter.Schema)
	}

	if filter.DateCreated != nil {
		query = applyDateRange(query, "date_created", filter.DateCreated)
	}

	if filter.MessageTimestamp != nil {
		query = applyDateRange(query, "message_timestamp", filter.MessageTimestamp)
	}

	if filter.IsLatestBaseState != nil {
		query = query.Where("is_latest_base_state = ?", *filter.IsLatestBaseState)
	}

	if filter.IsInitialWrite != nil {
		query = query.Where("is_initial_write = ?", *filter.IsInitialWrite)
	}

	return query
}

func applyDateRange(query *gorm.DB, column string, r *store.DateRange) *gorm.DB {
	if r.From != "" {
		query = query.Where(column+" >= ?", r.From)
	}

	if r.To != "" {
		query = query.Where(column+" <= ?", r.To)
	}

	return query
}

func rowToMessage(row storedMessage) (*message.Message, error) {
	var d message.Descriptor
	if err := json.Unmarshal(row.DescriptorJSON, &d); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal descriptor: %w", err)
	}

	var auth message.Authorization
	if err := json.Unmarshal(row.AuthorizationJSON, &auth); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal authorization: %w", err)
	}

	return &message.Message{
		Descriptor:    d,
		Authorization: &auth,
		RecordID:      row.RecordID,
		ContextID:     row.ContextID,
		EncodedData:   row.EncodedData,
	}, nil
}
