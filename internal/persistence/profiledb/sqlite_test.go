package profiledb

import (
	"path/filepath"
	"testing"

	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/protocol"
	"github.com/Voltarian-Technologies/mc.voltaccept.com/internal/session"
)

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	in := map[string]session.Profile{
		"alice": {
			UUID:        "uuid-alice",
			DisplayName: "Alice",
			OSUsername:  "alice",
			Position:    protocol.Position{X: 123.5, Y: 300},
			GroundY:     300,
			MapWidth:    800,
		},
		"AI_Grokzilla": {
			UUID:        "ai-1",
			DisplayName: "Grokzilla",
			OSUsername:  "AI_Grokzilla",
			IsAI:        true,
		},
	}
	if err := st.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d profiles, want only the human", len(got))
	}
	p, ok := got["alice"]
	if !ok {
		t.Fatalf("alice missing: %v", got)
	}
	if p.UUID != "uuid-alice" || p.DisplayName != "Alice" || p.Position.X != 123.5 {
		t.Fatalf("roundtrip mismatch: %+v", p)
	}
}

func TestStore_SaveUpserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	p := session.Profile{UUID: "u1", DisplayName: "Old", OSUsername: "bob", GroundY: 300, MapWidth: 800}
	if err := st.Save(map[string]session.Profile{"bob": p}); err != nil {
		t.Fatalf("save: %v", err)
	}
	p.DisplayName = "New"
	p.Position.X = 42
	if err := st.Save(map[string]session.Profile{"bob": p}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["bob"].DisplayName != "New" || got["bob"].Position.X != 42 {
		t.Fatalf("upsert not applied: %+v", got["bob"])
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.Save(map[string]session.Profile{
		"alice": {UUID: "u1", DisplayName: "Alice", OSUsername: "alice"},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, err := st2.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["alice"].UUID != "u1" {
		t.Fatalf("data lost across reopen: %v", got)
	}
}
