package session

import (
	"testing"
	"time"

	"github.com/snapfind/product_scout_gemini/internal/model"
)

func TestSessionTransitions(t *testing.T) {
	t.Run("new session starts in upload", func(t *testing.T) {
		sess := NewStore(time.Minute).Create()
		if sess.Step() != StepUpload {
			t.Errorf("step = %v, want upload", sess.Step())
		}
	})

	t.Run("processing rejects concurrent submission", func(t *testing.T) {
		sess := newSession("s1")
		if err := sess.StartProcessing(); err != nil {
			t.Fatalf("first StartProcessing: %v", err)
		}
		if err := sess.StartProcessing(); err == nil {
			t.Error("second StartProcessing should fail while in flight")
		}
	})

	t.Run("fail reaches error state with message", func(t *testing.T) {
		sess := newSession("s1")
		sess.StartProcessing()
		sess.Fail("could not identify product")

		snap := sess.Snapshot()
		if snap.Step != StepError {
			t.Errorf("step = %v, want error", snap.Step)
		}
		if snap.ErrorMessage != "could not identify product" {
			t.Errorf("errorMessage = %q", snap.ErrorMessage)
		}
	})

	t.Run("complete reaches results state", func(t *testing.T) {
		sess := newSession("s1")
		sess.StartProcessing()
		sess.Complete(Results{Product: &model.ProductInfo{Name: "X"}})

		snap := sess.Snapshot()
		if snap.Step != StepResults {
			t.Errorf("step = %v, want results", snap.Step)
		}
		if snap.Results.Product == nil || snap.Results.Product.Name != "X" {
			t.Errorf("product = %+v", snap.Results.Product)
		}
	})

	t.Run("error state allows retry", func(t *testing.T) {
		sess := newSession("s1")
		sess.StartProcessing()
		sess.Fail("boom")
		if err := sess.StartProcessing(); err != nil {
			t.Errorf("retry from error: %v", err)
		}
	})
}

func TestSessionResets(t *testing.T) {
	loc := model.UserLocation{Latitude: 13.75, Longitude: 100.5}

	t.Run("soft reset keeps cached location", func(t *testing.T) {
		sess := newSession("s1")
		sess.CacheLocation(loc)
		sess.StartProcessing()
		sess.Complete(Results{Product: &model.ProductInfo{Name: "X"}})

		sess.SoftReset()

		if sess.Step() != StepUpload {
			t.Errorf("step = %v, want upload", sess.Step())
		}
		if sess.CachedLocation() == nil {
			t.Error("soft reset must keep the cached location")
		}
		if sess.Snapshot().Results.Product != nil {
			t.Error("soft reset must clear results")
		}
	})

	t.Run("full reset drops cached location", func(t *testing.T) {
		sess := newSession("s1")
		sess.CacheLocation(loc)
		sess.StartProcessing()
		sess.Complete(Results{})

		sess.FullReset()

		if sess.CachedLocation() != nil {
			t.Error("full reset must drop the cached location")
		}
		if sess.Step() != StepUpload {
			t.Errorf("step = %v, want upload", sess.Step())
		}
	})
}

func TestSimilarProductLookup(t *testing.T) {
	sess := newSession("s1")
	sess.StartProcessing()
	sess.Complete(Results{SimilarProducts: []model.SimilarProduct{
		{Name: "Alt A", ImageURL: "https://example.com/a.jpg"},
	}})

	if _, ok := sess.SimilarProduct(0); !ok {
		t.Error("index 0 should resolve")
	}
	if _, ok := sess.SimilarProduct(1); ok {
		t.Error("index 1 should be out of range")
	}
	if _, ok := sess.SimilarProduct(-1); ok {
		t.Error("negative index should be out of range")
	}
}

func TestStore(t *testing.T) {
	store := NewStore(time.Minute)

	sess := store.Create()
	if got, ok := store.Get(sess.ID); !ok || got.ID != sess.ID {
		t.Fatalf("Get(%q) = %v, %v", sess.ID, got, ok)
	}

	if _, ok := store.Get("nope"); ok {
		t.Error("unknown ID should miss")
	}

	store.Delete(sess.ID)
	if _, ok := store.Get(sess.ID); ok {
		t.Error("deleted session should miss")
	}
}

func TestStoreSize(t *testing.T) {
	store := NewStore(time.Minute)
	if store.Size() != 0 {
		t.Errorf("empty store size = %d", store.Size())
	}

	a := store.Create()
	store.Create()
	if store.Size() != 2 {
		t.Errorf("size = %d, want 2", store.Size())
	}

	store.Delete(a.ID)
	if store.Size() != 1 {
		t.Errorf("size after delete = %d, want 1", store.Size())
	}
}

func TestStoreExpiry(t *testing.T) {
	store := NewStore(10 * time.Millisecond)
	sess := store.Create()

	time.Sleep(30 * time.Millisecond)

	if _, ok := store.Get(sess.ID); ok {
		t.Error("expired session should miss")
	}
}
