package cache

import (
	"testing"
	"time"

	"github.com/argofloat/gateway/internal/domain"
)

func TestGetMissesOnEmptyCache(t *testing.T) {
	c := New(time.Hour, 10, time.Hour)
	defer c.Close()

	_, _, ok := c.Get("what is temperature", nil)
	if ok {
		t.Fatal("expected a miss on an empty cache")
	}
	if c.Stats().Misses != 1 {
		t.Errorf("expected 1 miss recorded, got %d", c.Stats().Misses)
	}
}

func TestSetThenGetHits(t *testing.T) {
	c := New(time.Hour, 10, time.Hour)
	defer c.Close()

	resp := domain.CoordinatorResponse{Narrative: "hello"}
	c.Set("hi", nil, resp, false)

	got, routed, ok := c.Get("hi", nil)
	if !ok {
		t.Fatal("expected a hit")
	}
	if routed {
		t.Error("expected routed=false for a conversational cache entry")
	}
	if got.Narrative != "hello" {
		t.Errorf("unexpected cached response: %+v", got)
	}
	if c.Stats().Hits != 1 {
		t.Errorf("expected 1 hit recorded, got %d", c.Stats().Hits)
	}
}

func TestDifferentHistoryIsADifferentKey(t *testing.T) {
	c := New(time.Hour, 10, time.Hour)
	defer c.Close()

	c.Set("what about now?", []domain.ConversationMessage{{Role: domain.RoleUser, Content: "turn A"}},
		domain.CoordinatorResponse{Narrative: "A"}, false)

	_, _, ok := c.Get("what about now?", []domain.ConversationMessage{{Role: domain.RoleUser, Content: "turn B"}})
	if ok {
		t.Error("expected a different conversational context to miss")
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c := New(10*time.Millisecond, 10, time.Hour)
	defer c.Close()

	c.Set("hi", nil, domain.CoordinatorResponse{Narrative: "hello"}, false)
	time.Sleep(20 * time.Millisecond)

	_, _, ok := c.Get("hi", nil)
	if ok {
		t.Error("expected expired entry to miss")
	}
}

func TestSetEvictsWhenAtCapacity(t *testing.T) {
	c := New(time.Hour, 2, time.Hour)
	defer c.Close()

	c.Set("q1", nil, domain.CoordinatorResponse{Narrative: "r1"}, false)
	c.Set("q2", nil, domain.CoordinatorResponse{Narrative: "r2"}, false)
	c.Set("q3", nil, domain.CoordinatorResponse{Narrative: "r3"}, false)

	if c.Stats().Size > 2 {
		t.Errorf("expected size to stay at capacity 2, got %d", c.Stats().Size)
	}
}

func TestRoutedEntryRoundTrips(t *testing.T) {
	c := New(time.Hour, 10, time.Hour)
	defer c.Close()

	c.Set("what is salinity", nil, domain.CoordinatorResponse{}, true)

	_, routed, ok := c.Get("what is salinity", nil)
	if !ok || !routed {
		t.Errorf("expected a routed=true hit, got ok=%v routed=%v", ok, routed)
	}
}
