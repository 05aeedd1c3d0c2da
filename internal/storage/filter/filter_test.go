package filter

import (
	"reflect"
	"testing"
	"time"
)

func TestParseRollFilter_StatusEquals(t *testing.T) {
	cond, err := ParseRollFilter(`status = "proposed"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "status = ?" {
		t.Errorf("expected 'status = ?', got %q", cond.Clause)
	}
	if len(cond.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(cond.Params))
	}
	if cond.Params[0] != "proposed" {
		t.Errorf("expected 'proposed', got %v", cond.Params[0])
	}
}

func TestParseRollFilter_Empty(t *testing.T) {
	cond, err := ParseRollFilter(" ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "" || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseRollFilter_AndOr(t *testing.T) {
	cond, err := ParseRollFilter(`status = "executed" AND creator_id = "user-1"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(status = ? AND creator_id = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"executed", "user-1"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseRollFilter(`outcome = "strong_success" OR outcome = "mixed_success"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(outcome = ? OR outcome = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseRollFilter_BoolBecomesInteger(t *testing.T) {
	cond, err := ParseRollFilter(`is_reaction = true`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "is_reaction = ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{int64(1)}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseRollFilter_TimestampBecomesMillis(t *testing.T) {
	cond, err := ParseRollFilter(`created > timestamp("2026-01-01T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "created_at > ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if !reflect.DeepEqual(cond.Params, []any{want}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseRollFilter_MightComparison(t *testing.T) {
	cond, err := ParseRollFilter(`might >= 2`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "might >= ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseRollFilter_InvalidField(t *testing.T) {
	_, err := ParseRollFilter(`unknown = "x"`)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRollFilter_InvalidValueFunc(t *testing.T) {
	_, err := ParseRollFilter(`created = duration("1h")`)
	if err == nil {
		t.Fatal("expected error for unsupported value function")
	}
}

func TestParseRollFilter_InvalidTimestamp(t *testing.T) {
	_, err := ParseRollFilter(`created = timestamp("not-a-time")`)
	if err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}
