package room

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegisterOrderIsFirstRegisteredFirstListed(t *testing.T) {
	r := NewRegistry()
	r.Register(Session{ID: "s1", UserID: 1, Username: "alice"})
	r.Register(Session{ID: "s2", UserID: 2, Username: "bob"})
	r.Register(Session{ID: "s3", UserID: 3, Username: "carol"})

	users := r.ListActiveUsers()
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	for i, want := range []string{"alice", "bob", "carol"} {
		if users[i].Username != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, users[i].Username)
		}
	}
}

func TestRegisterIdempotentReplace(t *testing.T) {
	r := NewRegistry()
	r.Register(Session{ID: "s1", UserID: 1, Username: "alice"})
	r.Register(Session{ID: "s2", UserID: 2, Username: "bob"})

	// Reconnect with a stale session id must not create a duplicate
	// presence entry and keeps the original position.
	r.Register(Session{ID: "s1", UserID: 1, Username: "alice", Name: "Alice A."})

	if r.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", r.Len())
	}
	users := r.ListActiveUsers()
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "alice" || users[0].Name != "Alice A." {
		t.Fatalf("expected replaced alice first, got %+v", users[0])
	}
	sess, ok := r.Get("s1")
	if !ok || sess.Name != "Alice A." {
		t.Fatalf("expected replaced session, got %+v (ok=%v)", sess, ok)
	}
}

func TestDeregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(Session{ID: "s1", UserID: 1, Username: "alice"})

	r.Deregister("s1")
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}

	// Second deregister is a no-op, not an error.
	r.Deregister("s1")
	r.Deregister("never-registered")
	if r.Len() != 0 {
		t.Fatalf("expected registry unchanged, got %d", r.Len())
	}
}

func TestListActiveUsersDeduplicatesByUser(t *testing.T) {
	r := NewRegistry()
	// Two browser tabs for alice.
	r.Register(Session{ID: "tab1", UserID: 1, Username: "alice"})
	r.Register(Session{ID: "s2", UserID: 2, Username: "bob"})
	r.Register(Session{ID: "tab2", UserID: 1, Username: "alice"})

	users := r.ListActiveUsers()
	if len(users) != 2 {
		t.Fatalf("expected 2 distinct users, got %d: %+v", len(users), users)
	}
	if users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("unexpected order: %+v", users)
	}

	// Dropping one tab keeps alice online.
	r.Deregister("tab1")
	users = r.ListActiveUsers()
	if len(users) != 2 {
		t.Fatalf("expected alice still online, got %+v", users)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			r.Register(Session{ID: id, UserID: i, Username: fmt.Sprintf("u%d", i)})
			r.ListActiveUsers()
			if i%2 == 0 {
				r.Deregister(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 25 {
		t.Fatalf("expected 25 surviving sessions, got %d", r.Len())
	}
}
