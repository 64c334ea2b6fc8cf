// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/dgraph-io/badger/v4"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTurn(query, answer string) *datatypes.Turn {
	return &datatypes.Turn{
		RequestID:   "req-" + query,
		Path:        datatypes.PathRAGOnly,
		UserMessage: datatypes.NewMessage(datatypes.RoleUser, query),
		Reply:       datatypes.NewMessage(datatypes.RoleAssistant, answer),
	}
}

func TestBadgerStore_AppendAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seq1, err := s.AppendTurn(ctx, "conv-1", makeTurn("q1", "a1"))
	if err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if seq1 != 1 {
		t.Errorf("first seq = %d, want 1", seq1)
	}

	seq2, err := s.AppendTurn(ctx, "conv-1", makeTurn("q2", "a2"))
	if err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if seq2 != 2 {
		t.Errorf("second seq = %d, want 2", seq2)
	}

	conv, err := s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(conv.Turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(conv.Turns))
	}
	if conv.Turns[0].UserMessage.Content != "q1" || conv.Turns[1].UserMessage.Content != "q2" {
		t.Error("turns out of order")
	}
	msgs := conv.Messages()
	if len(msgs) != 4 {
		t.Errorf("got %d messages, want exactly one pair per turn", len(msgs))
	}
}

func TestBadgerStore_GetConversation_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetConversation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBadgerStore_SeparateConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendTurn(ctx, "conv-a", makeTurn("qa", "aa")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendTurn(ctx, "conv-b", makeTurn("qb", "ab")); err != nil {
		t.Fatal(err)
	}

	convA, err := s.GetConversation(ctx, "conv-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(convA.Turns) != 1 || convA.Turns[0].UserMessage.Content != "qa" {
		t.Error("conversation isolation violated")
	}
}

func TestBadgerStore_ConcurrentAppendsSameConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("q%d", i)
			if _, err := s.AppendTurn(ctx, "conv-hot", makeTurn(q, "a")); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent append failed: %v", err)
	}

	conv, err := s.GetConversation(ctx, "conv-hot")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Turns) != workers {
		t.Fatalf("got %d turns, want %d (no lost appends)", len(conv.Turns), workers)
	}
	for i, turn := range conv.Turns {
		if turn.Seq != uint64(i+1) {
			t.Errorf("turn %d has seq %d, want contiguous sequence", i, turn.Seq)
		}
	}
}

func TestBadgerStore_RateMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	turn := makeTurn("q1", "a1")
	if _, err := s.AppendTurn(ctx, "conv-1", turn); err != nil {
		t.Fatal(err)
	}

	err := s.RateMessage(ctx, turn.Reply.ID, datatypes.RatingRequest{Rating: 5, Comment: "great"})
	if err != nil {
		t.Fatalf("RateMessage failed: %v", err)
	}

	conv, err := s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if conv.Turns[0].Reply.Rating != 5 || conv.Turns[0].Reply.Comment != "great" {
		t.Errorf("rating not merged: %+v", conv.Turns[0].Reply)
	}
	if conv.Turns[0].UserMessage.Rating != 0 {
		t.Error("rating leaked to the wrong message")
	}

	// Re-rating overwrites.
	if err := s.RateMessage(ctx, turn.Reply.ID, datatypes.RatingRequest{Rating: 2}); err != nil {
		t.Fatal(err)
	}
	conv, _ = s.GetConversation(ctx, "conv-1")
	if conv.Turns[0].Reply.Rating != 2 {
		t.Errorf("re-rating did not overwrite, got %d", conv.Turns[0].Reply.Rating)
	}
}

func TestBadgerStore_RateMessage_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RateMessage(ctx, "missing-msg", datatypes.RatingRequest{Rating: 3})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	turn := makeTurn("q", "a")
	if _, err := s.AppendTurn(ctx, "conv-1", turn); err != nil {
		t.Fatal(err)
	}
	if err := s.RateMessage(ctx, turn.Reply.ID, datatypes.RatingRequest{Rating: 9}); err == nil {
		t.Error("expected validation error for out-of-range rating")
	}
}

func TestBadgerStore_Escalations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := datatypes.NewEscalation("conv-1", "VU/2021/0042", "my cgpa?", "tool failure")
	second := datatypes.NewEscalation("conv-2", "", "results?", "synthesis failure")
	second.CreatedAt = first.CreatedAt + 1000

	if err := s.AddEscalation(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEscalation(ctx, second); err != nil {
		t.Fatal(err)
	}

	escs, err := s.ListEscalations(ctx)
	if err != nil {
		t.Fatalf("ListEscalations failed: %v", err)
	}
	if len(escs) != 2 {
		t.Fatalf("got %d escalations, want 2", len(escs))
	}
	if escs[0].ID != first.ID || escs[1].ID != second.ID {
		t.Error("escalations not in chronological order")
	}
}

func TestBadgerStore_UpdateWithRetry_TransientConflict(t *testing.T) {
	s := newTestStore(t)

	conflicts := 0
	err := s.updateWithRetry(func(txn *badger.Txn) error {
		if conflicts < 2 {
			conflicts++
			return badger.ErrConflict
		}
		return txn.Set([]byte("retry/key"), []byte("ok"))
	})
	if err != nil {
		t.Fatalf("transient conflicts should be absorbed: %v", err)
	}
	if conflicts != 2 {
		t.Errorf("transaction ran past %d conflicts, want 2", conflicts)
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("retry/key"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if string(val) != "ok" {
				return fmt.Errorf("value = %q, want ok", val)
			}
			return nil
		})
	})
	if err != nil {
		t.Errorf("retried write not committed: %v", err)
	}
}

func TestBadgerStore_UpdateWithRetry_PersistentConflict(t *testing.T) {
	s := newTestStore(t)

	attempts := 0
	err := s.updateWithRetry(func(txn *badger.Txn) error {
		attempts++
		return badger.ErrConflict
	})
	if !errors.Is(err, badger.ErrConflict) {
		t.Fatalf("exhausted retries should surface the conflict, got %v", err)
	}
	if attempts != conflictRetries+1 {
		t.Errorf("ran %d attempts, want %d", attempts, conflictRetries+1)
	}
}

func TestBadgerStore_AppendTurn_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendTurn(ctx, "", makeTurn("q", "a")); err == nil {
		t.Error("expected error for empty conversation id")
	}
	if _, err := s.AppendTurn(ctx, "conv-1", nil); err == nil {
		t.Error("expected error for nil turn")
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error for persistent store without path")
	}
}
