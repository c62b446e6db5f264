package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestTypedSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	if err := PutSettingValue(ctx, st, "retention_days", 45); err != nil {
		t.Fatal(err)
	}
	if got := GetSettingInt(ctx, st, "retention_days", 30); got != 45 {
		t.Errorf("got %d, want 45", got)
	}

	if got := GetSettingBool(ctx, st, "missing_flag", true); got != true {
		t.Errorf("expected default true for missing key, got %v", got)
	}

	if err := PutSettingValue(ctx, st, "threshold", 0.8); err != nil {
		t.Fatal(err)
	}
	if got := GetSettingFloat(ctx, st, "threshold", 0); got != 0.8 {
		t.Errorf("got %v, want 0.8", got)
	}
}
