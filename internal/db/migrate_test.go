package db

import "testing"

func TestSplitStatementsDropsBlankFragments(t *testing.T) {
	got := splitStatements("CREATE INDEX a ON t (x);\n\n  ;CREATE INDEX b ON t (y);\n")
	if len(got) != 2 {
		t.Fatalf("unexpected statement count: got %d want 2 (%#v)", len(got), got)
	}
	if got[0] != "CREATE INDEX a ON t (x)" || got[1] != "CREATE INDEX b ON t (y)" {
		t.Fatalf("unexpected statements: %#v", got)
	}
}

func TestPostAutoMigrateSQLIsEmbedded(t *testing.T) {
	if len(splitStatements(postAutoMigrateSQL)) == 0 {
		t.Fatalf("expected embedded post-migrate statements")
	}
}

func TestResolveGormLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":  "info",
		"info":   "warn",
		"error":  "error",
		"silent": "silent",
	}
	names := map[int]string{1: "silent", 2: "error", 3: "warn", 4: "info"}
	for level, want := range cases {
		got := names[int(resolveGormLogLevel(level, "production"))]
		if got != want {
			t.Fatalf("level %q: got %q want %q", level, got, want)
		}
	}
}
