package entity

import "testing"

func TestMessageStatusRank(t *testing.T) {
	t.Parallel()

	if !(MessageStatusSent.Rank() < MessageStatusDelivered.Rank() && MessageStatusDelivered.Rank() < MessageStatusRead.Rank()) {
		t.Fatalf("expected sent < delivered < read")
	}
	if MessageStatusFailed.Rank() != MessageStatusSent.Rank() {
		t.Fatalf("expected failed to rank with sent")
	}
}

func TestMessageStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []MessageStatus{MessageStatusSent, MessageStatusDelivered, MessageStatusFailed, MessageStatusRead} {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if MessageStatus("pending").Valid() {
		t.Fatalf("expected pending to be invalid")
	}
}
