package testutil

import (
	"net/http/httptest"
	"os"
	"testing"
)

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t)

	if db == nil {
		t.Fatal("SetupTestDB returned nil")
	}

	// Verify it's a working database
	err := db.Ping()
	if err != nil {
		t.Fatalf("database should be pingable: %v", err)
	}

	// Verify migrations ran (tables should exist)
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM security_settings").Scan(&count)
	if err != nil {
		t.Fatalf("security_settings table should exist: %v", err)
	}
	err = db.QueryRow("SELECT COUNT(*) FROM blocked_ips").Scan(&count)
	if err != nil {
		t.Fatalf("blocked_ips table should exist: %v", err)
	}
	err = db.QueryRow("SELECT COUNT(*) FROM security_events").Scan(&count)
	if err != nil {
		t.Fatalf("security_events table should exist: %v", err)
	}
}

func TestAssertStatusCode(t *testing.T) {
	t.Run("matching status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		rr.WriteHeader(200)

		// Should not panic
		innerT := &testing.T{}
		AssertStatusCode(innerT, rr, 200)
		if innerT.Failed() {
			t.Error("should not fail for matching status")
		}
	})

	t.Run("non-matching status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		rr.WriteHeader(404)

		innerT := &testing.T{}
		AssertStatusCode(innerT, rr, 200)
		// Note: Can't easily check if failed since we're using a real t
		// Just verify it doesn't panic
	})
}

func TestAssertNoError(t *testing.T) {
	t.Run("no error", func(t *testing.T) {
		innerT := &testing.T{}
		AssertNoError(innerT, nil)
		// Should not fail
	})

	// Note: Testing with actual error would cause innerT to fatal
	// which is expected behavior
}

func TestAssertError(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		innerT := &testing.T{}
		AssertError(innerT, os.ErrNotExist)
		// Should not fail when there is an error
	})
}

func TestAssertEqual(t *testing.T) {
	t.Run("equal values", func(t *testing.T) {
		innerT := &testing.T{}
		AssertEqual(innerT, 42, 42)
		// Should not fail
	})

	t.Run("equal strings", func(t *testing.T) {
		innerT := &testing.T{}
		AssertEqual(innerT, "hello", "hello")
		// Should not fail
	})
}

func TestAssertContains(t *testing.T) {
	t.Run("contains substring", func(t *testing.T) {
		innerT := &testing.T{}
		AssertContains(innerT, "hello world", "world")
		// Should not fail
	})

	t.Run("contains exact", func(t *testing.T) {
		innerT := &testing.T{}
		AssertContains(innerT, "hello", "hello")
		// Should not fail
	})
}

func TestAssertNotContains(t *testing.T) {
	t.Run("does not contain", func(t *testing.T) {
		innerT := &testing.T{}
		AssertNotContains(innerT, "hello world", "foo")
		// Should not fail
	})
}
