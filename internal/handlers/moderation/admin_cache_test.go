package moderation

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestIsAdminLazilyPopulatesOnce(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{adminIDs: map[int64][]int64{testChatID: {testAdminID}}}
	cache := NewAdminCache(ops, testSelfID)

	if !cache.IsAdmin(context.Background(), testChatID, testAdminID) {
		t.Fatal("expected admin after lazy refresh")
	}
	if cache.IsAdmin(context.Background(), testChatID, 77) {
		t.Fatal("expected non-admin")
	}
	if ops.adminCalls != 1 {
		t.Fatalf("expected a single lazy refresh, got %d", ops.adminCalls)
	}
}

func TestRefreshFailureKeepsPreviousSet(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{adminIDs: map[int64][]int64{testChatID: {testAdminID}}}
	cache := NewAdminCache(ops, testSelfID)
	cache.Refresh(context.Background(), testChatID)

	ops.adminErr = errors.New("transport down")
	cache.Refresh(context.Background(), testChatID)

	if !cache.IsAdmin(context.Background(), testChatID, testAdminID) {
		t.Fatal("expected stale set preserved on refresh failure")
	}
}

func TestRefreshReplacesWholesale(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{adminIDs: map[int64][]int64{testChatID: {testAdminID}}}
	cache := NewAdminCache(ops, testSelfID)
	cache.Refresh(context.Background(), testChatID)

	ops.adminIDs[testChatID] = []int64{5}
	cache.Refresh(context.Background(), testChatID)

	if cache.IsAdmin(context.Background(), testChatID, testAdminID) {
		t.Fatal("expected demoted admin dropped, not merged")
	}
	if !cache.IsAdmin(context.Background(), testChatID, 5) {
		t.Fatal("expected new admin present")
	}
}

func TestBotSelfCountsAsAdmin(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{adminIDs: map[int64][]int64{}}
	cache := NewAdminCache(ops, testSelfID)

	if !cache.IsAdmin(context.Background(), testChatID, testSelfID) {
		t.Fatal("expected the bot itself treated as admin")
	}
}
