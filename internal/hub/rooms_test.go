package hub

import "testing"

func TestConversationKey_OrderIndependent(t *testing.T) {
	pairs := [][2]int64{{1, 2}, {2, 1}, {10, 3}, {3, 10}, {5, 5}}
	for _, p := range pairs {
		if ConversationKey(p[0], p[1]) != ConversationKey(p[1], p[0]) {
			t.Fatalf("ConversationKey(%d,%d) != ConversationKey(%d,%d)", p[0], p[1], p[1], p[0])
		}
	}
	if got := ConversationKey(2, 1); got != "chat_1_2" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := PersonalKey(42); got != "user_42" {
		t.Fatalf("unexpected personal key: %s", got)
	}
}

func TestRooms_JoinAndBroadcast(t *testing.T) {
	rooms := NewRooms()
	a := &fakeSender{}
	b := &fakeSender{}

	key := ConversationKey(1, 2)
	rooms.Join(key, "conn-a", 1, a)
	rooms.Join(key, "conn-b", 2, b)

	if got := rooms.Broadcast(key, []byte("hello")); got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}
	if len(a.frames) != 1 || len(b.frames) != 1 {
		t.Fatalf("expected both members to receive the frame")
	}
}

func TestRooms_LeaveIsSilentWhenAbsent(t *testing.T) {
	rooms := NewRooms()
	// Leaving a room that was never joined must not panic or error.
	rooms.Leave("chat_1_2", "conn-x")
	rooms.LeaveAll("conn-x")
}

func TestRooms_BroadcastCleansFailedSenders(t *testing.T) {
	rooms := NewRooms()
	ok := &fakeSender{}
	bad := &fakeSender{fail: true}

	key := ConversationKey(1, 2)
	rooms.Join(key, "conn-ok", 1, ok)
	rooms.Join(key, "conn-bad", 2, bad)

	if got := rooms.Broadcast(key, []byte("x")); got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}

	// The failed connection should have been evicted from the group.
	members := rooms.Members(key)
	if len(members) != 1 || members[0] != "conn-ok" {
		t.Fatalf("expected only conn-ok to remain, got %v", members)
	}
}

func TestRooms_BroadcastExceptSkipsAllSenderConnections(t *testing.T) {
	rooms := NewRooms()
	senderTab1 := &fakeSender{}
	senderTab2 := &fakeSender{}
	peer := &fakeSender{}

	key := ConversationKey(1, 2)
	rooms.Join(key, "conn-1a", 1, senderTab1)
	rooms.Join(key, "conn-1b", 1, senderTab2)
	rooms.Join(key, "conn-2", 2, peer)

	if got := rooms.BroadcastExcept(key, []byte("typing"), 1); got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}
	if len(senderTab1.frames) != 0 || len(senderTab2.frames) != 0 {
		t.Fatalf("sender's own connections must not receive the frame")
	}
	if len(peer.frames) != 1 {
		t.Fatalf("peer should have received the frame")
	}
}

func TestRooms_LeaveAllVacatesEveryGroup(t *testing.T) {
	rooms := NewRooms()
	s := &fakeSender{}

	rooms.Join(PersonalKey(1), "conn-a", 1, s)
	rooms.Join(ConversationKey(1, 2), "conn-a", 1, s)
	rooms.Join(ConversationKey(1, 3), "conn-a", 1, s)

	rooms.LeaveAll("conn-a")

	for _, key := range []string{PersonalKey(1), ConversationKey(1, 2), ConversationKey(1, 3)} {
		if got := rooms.Broadcast(key, []byte("x")); got != 0 {
			t.Fatalf("expected empty group %s after LeaveAll, delivered %d", key, got)
		}
	}
	if len(s.frames) != 0 {
		t.Fatalf("departed connection received frames")
	}
}
