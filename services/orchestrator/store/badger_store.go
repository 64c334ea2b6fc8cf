// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	conv/<id>/meta            -> 8-byte BE last sequence number
//	conv/<id>/turn/<8-byte BE seq> -> JSON Turn
//	msg/<message id>          -> JSON messageRef
//	rating/<message id>       -> JSON datatypes.RatingRequest
//	esc/<8-byte BE ts><id>    -> JSON datatypes.Escalation
const (
	convPrefix   = "conv/"
	msgPrefix    = "msg/"
	ratingPrefix = "rating/"
	escPrefix    = "esc/"
)

// lockStripes is the number of per-conversation write locks.
const lockStripes = 64

// conflictRetries is how many times a write transaction is retried
// after badger.ErrConflict before the error is surfaced.
const conflictRetries = 3

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for database files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger is the logger for database operations.
	// If nil, Badger's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for the given data directory.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// messageRef locates a stored message for rating lookups.
type messageRef struct {
	ConversationID string `json:"conversation_id"`
	Seq            uint64 `json:"seq"`
	Role           string `json:"role"`
}

// BadgerStore is the Badger-backed Store implementation.
type BadgerStore struct {
	db     *badger.DB
	locks  [lockStripes]sync.Mutex
	stopGC chan struct{}
	doneGC chan struct{}
}

// Compile-time interface implementation check.
var _ Store = (*BadgerStore)(nil)

// Open creates a BadgerStore with the given configuration.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	s := &BadgerStore{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *BadgerStore) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(s.doneGC)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// updateWithRetry runs a write transaction, retrying when Badger's
// optimistic concurrency control aborts it with ErrConflict. Writes to
// the same conversation are serialized by the stripe locks, but turns
// for different conversations can still touch overlapping SSI read
// marks.
func (s *BadgerStore) updateWithRetry(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("Retrying conflicted store transaction", "attempt", attempt)
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// lockFor returns the stripe lock serializing writes to a conversation.
func (s *BadgerStore) lockFor(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &s.locks[h.Sum32()%lockStripes]
}

func metaKey(conversationID string) []byte {
	return []byte(convPrefix + conversationID + "/meta")
}

func turnKey(conversationID string, seq uint64) []byte {
	key := make([]byte, 0, len(convPrefix)+len(conversationID)+14)
	key = append(key, convPrefix...)
	key = append(key, conversationID...)
	key = append(key, "/turn/"...)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	return append(key, seqBytes[:]...)
}

// AppendTurn implements the Store interface.
//
// The turn, its sequence assignment, and the message index entries are
// committed in a single transaction.
func (s *BadgerStore) AppendTurn(ctx context.Context, conversationID string, turn *datatypes.Turn) (uint64, error) {
	if conversationID == "" {
		return 0, errors.New("conversation id is required")
	}
	if turn == nil {
		return 0, errors.New("turn is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	mu := s.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	var seq uint64
	err := s.updateWithRetry(func(txn *badger.Txn) error {
		// Read the last assigned sequence number.
		seq = 1
		item, err := txn.Get(metaKey(conversationID))
		if err == nil {
			if verr := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("corrupt sequence for conversation %s", conversationID)
				}
				seq = binary.BigEndian.Uint64(val) + 1
				return nil
			}); verr != nil {
				return verr
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		turn.Seq = seq
		turnBytes, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}

		var seqBytes [8]byte
		binary.BigEndian.PutUint64(seqBytes[:], seq)

		if err := txn.Set(turnKey(conversationID, seq), turnBytes); err != nil {
			return err
		}
		if err := txn.Set(metaKey(conversationID), seqBytes[:]); err != nil {
			return err
		}

		// Index both messages so ratings can find them later.
		for _, msg := range []datatypes.Message{turn.UserMessage, turn.Reply} {
			ref, err := json.Marshal(messageRef{
				ConversationID: conversationID,
				Seq:            seq,
				Role:           msg.Role,
			})
			if err != nil {
				return fmt.Errorf("marshal message ref: %w", err)
			}
			if err := txn.Set([]byte(msgPrefix+msg.ID), ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("append turn to %s: %w", conversationID, err)
	}
	return seq, nil
}

// GetConversation implements the Store interface.
func (s *BadgerStore) GetConversation(ctx context.Context, conversationID string) (*datatypes.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conv := &datatypes.Conversation{ID: conversationID}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(convPrefix + conversationID + "/turn/")
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   32,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var turn datatypes.Turn
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &turn)
			}); err != nil {
				return fmt.Errorf("decode turn: %w", err)
			}
			s.mergeRating(txn, &turn.UserMessage)
			s.mergeRating(txn, &turn.Reply)
			conv.Turns = append(conv.Turns, turn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(conv.Turns) == 0 {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return conv, nil
}

// mergeRating attaches a stored rating to a message, if one exists.
func (s *BadgerStore) mergeRating(txn *badger.Txn, msg *datatypes.Message) {
	item, err := txn.Get([]byte(ratingPrefix + msg.ID))
	if err != nil {
		return
	}
	var rating datatypes.RatingRequest
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rating)
	}); err != nil {
		return
	}
	msg.Rating = rating.Rating
	msg.Comment = rating.Comment
}

// RateMessage implements the Store interface.
func (s *BadgerStore) RateMessage(ctx context.Context, messageID string, rating datatypes.RatingRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rating.Validate(); err != nil {
		return fmt.Errorf("invalid rating: %w", err)
	}

	return s.updateWithRetry(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(msgPrefix + messageID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
			}
			return err
		}
		ratingBytes, err := json.Marshal(rating)
		if err != nil {
			return fmt.Errorf("marshal rating: %w", err)
		}
		return txn.Set([]byte(ratingPrefix+messageID), ratingBytes)
	})
}

// AddEscalation implements the Store interface.
func (s *BadgerStore) AddEscalation(ctx context.Context, esc datatypes.Escalation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if esc.ID == "" {
		return errors.New("escalation id is required")
	}

	escBytes, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}

	key := make([]byte, 0, len(escPrefix)+8+len(esc.ID))
	key = append(key, escPrefix...)
	var tsBytes [8]byte
	binary.BigEndian.PutUint64(tsBytes[:], uint64(esc.CreatedAt))
	key = append(key, tsBytes[:]...)
	key = append(key, esc.ID...)

	return s.updateWithRetry(func(txn *badger.Txn) error {
		return txn.Set(key, escBytes)
	})
}

// ListEscalations implements the Store interface.
func (s *BadgerStore) ListEscalations(ctx context.Context) ([]datatypes.Escalation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var escalations []datatypes.Escalation
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(escPrefix)
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   32,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var esc datatypes.Escalation
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &esc)
			}); err != nil {
				return fmt.Errorf("decode escalation: %w", err)
			}
			escalations = append(escalations, esc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escalations, nil
}
