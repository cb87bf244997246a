package store

import "testing"

// ============================================================================
// UUID Helper Tests
// ============================================================================

func TestNullUUID(t *testing.T) {
	t.Run("empty becomes SQL NULL", func(t *testing.T) {
		id, err := nullUUID("")
		if err != nil {
			t.Fatalf("nullUUID() error = %v", err)
		}
		if id.Valid {
			t.Error("empty input produced a valid UUID, want NULL")
		}
	})

	t.Run("valid UUID round-trips", func(t *testing.T) {
		const raw = "a2b8c0de-1234-4f56-8a9b-0c1d2e3f4a5b"
		id, err := nullUUID(raw)
		if err != nil {
			t.Fatalf("nullUUID() error = %v", err)
		}
		if !id.Valid {
			t.Fatal("valid input produced NULL")
		}
		if got := uuidString(id); got != raw {
			t.Errorf("uuidString() = %q, want %q", got, raw)
		}
	})

	t.Run("malformed ID surfaces an error", func(t *testing.T) {
		if _, err := nullUUID("run-42"); err == nil {
			t.Error("nullUUID() accepted a malformed run ID")
		}
	})
}
