package script

import (
	"testing"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
)

func TestParseBasicScript(t *testing.T) {
	res := Parse("[00:00] Hello {write: \"Hi\"}\n[00:05] {draw:circle}")

	if len(res.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(res.Actions))
	}
	if res.Actions[0].Kind != domain.ActionWrite || res.Actions[0].Payload != "Hi" {
		t.Errorf("unexpected first action: %+v", res.Actions[0])
	}
	if res.Actions[0].DueAt != 0 {
		t.Errorf("first action due at %s, want 0", res.Actions[0].DueAt)
	}
	if res.Actions[1].Kind != domain.ActionDraw || res.Actions[1].Payload != "circle" {
		t.Errorf("unexpected second action: %+v", res.Actions[1])
	}
	if res.Actions[1].DueAt != 5*time.Second {
		t.Errorf("second action due at %s, want 5s", res.Actions[1].DueAt)
	}

	if len(res.Speech) != 1 {
		t.Fatalf("expected 1 speech segment, got %d", len(res.Speech))
	}
	if res.Speech[0].Text != "Hello" {
		t.Errorf("speech text %q, want %q", res.Speech[0].Text, "Hello")
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    domain.ActionKind
		payload string
	}{
		{"write", `[00:01] {write: "Newton's Second Law"}`, domain.ActionWrite, "Newton's Second Law"},
		{"draw", `[00:01] {draw:triangle}`, domain.ActionDraw, "triangle"},
		{"draw unknown shape kept", `[00:01] {draw:dodecahedron}`, domain.ActionDraw, "dodecahedron"},
		{"highlight", `[00:01] {highlight: "F = ma"}`, domain.ActionHighlight, "F = ma"},
		{"erase", `[00:01] {erase: "scratch work"}`, domain.ActionErase, "scratch work"},
		{"newpage", `[00:01] {newpage: "Part Two"}`, domain.ActionNewPage, "Part Two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.line)
			if len(res.Actions) != 1 {
				t.Fatalf("expected 1 action, got %d", len(res.Actions))
			}
			a := res.Actions[0]
			if a.Kind != tt.kind || a.Payload != tt.payload {
				t.Errorf("got kind=%s payload=%q, want kind=%s payload=%q", a.Kind, a.Payload, tt.kind, tt.payload)
			}
		})
	}
}

func TestParseMalformedInput(t *testing.T) {
	tests := []struct {
		name        string
		script      string
		wantActions int
		wantSpeech  int
	}{
		{"empty", "", 0, 0},
		{"unknown command dropped", `[00:01] hello {pause: "x"}`, 0, 1},
		{"missing quotes dropped", `[00:01] hello {write: missing}`, 0, 1},
		{"unclosed brace is narration", `[00:01] hello {write: "x"`, 0, 1},
		{"one-digit timestamp is narration", `[1:30] hello`, 0, 1},
		{"command-only line yields no speech", `[00:02]   {draw:square}  `, 1, 0},
		{"blank lines", "\n\n\n", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.script)
			if len(res.Actions) != tt.wantActions {
				t.Errorf("actions: got %d, want %d", len(res.Actions), tt.wantActions)
			}
			if len(res.Speech) != tt.wantSpeech {
				t.Errorf("speech: got %d, want %d", len(res.Speech), tt.wantSpeech)
			}
		})
	}
}

func TestParseLinesBeforeFirstTimestamp(t *testing.T) {
	res := Parse("intro line {write: \"Welcome\"}\n[00:03] body")

	if len(res.Speech) != 2 {
		t.Fatalf("expected 2 speech segments, got %d", len(res.Speech))
	}
	if res.Speech[0].StartAt != 0 || res.Speech[0].Text != "intro line" {
		t.Errorf("intro segment wrong: %+v", res.Speech[0])
	}
	if len(res.Actions) != 1 || res.Actions[0].DueAt != 0 {
		t.Errorf("intro action should land at t=0: %+v", res.Actions)
	}
}

func TestParseContinuationLine(t *testing.T) {
	res := Parse("[00:02] first\nsecond part {draw:arrow}")

	if len(res.Speech) != 2 {
		t.Fatalf("expected 2 speech segments, got %d", len(res.Speech))
	}
	if res.Speech[1].StartAt != 2*time.Second {
		t.Errorf("continuation attaches to previous timestamp, got %s", res.Speech[1].StartAt)
	}
	if len(res.Actions) != 1 || res.Actions[0].DueAt != 2*time.Second {
		t.Errorf("continuation action at previous timestamp: %+v", res.Actions)
	}
}

func TestParseImpliedDurations(t *testing.T) {
	res := Parse("[00:00] one\n[00:04] two\n[00:10] three")

	want := []time.Duration{0, 4 * time.Second, 6 * time.Second}
	if len(res.Speech) != 3 {
		t.Fatalf("expected 3 speech segments, got %d", len(res.Speech))
	}
	for i, seg := range res.Speech {
		if seg.ImpliedDuration != want[i] {
			t.Errorf("segment %d implied duration %s, want %s", i, seg.ImpliedDuration, want[i])
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	commands := []string{
		`{write: "Integration by Substitution"}`,
		`{draw:circle}`,
		`{highlight: "u = g(x)"}`,
		`{erase: "old work"}`,
		`{newpage: "Examples"}`,
	}

	for _, cmd := range commands {
		res := Parse("[00:01] " + cmd)
		if len(res.Actions) != 1 {
			t.Fatalf("%s: expected 1 action, got %d", cmd, len(res.Actions))
		}
		if got := res.Actions[0].Command(); got != cmd {
			t.Errorf("round trip: got %q, want %q", got, cmd)
		}
	}
}

func TestParseMixedActionAndSpeechIndependence(t *testing.T) {
	res := Parse(`[00:07] Watch closely {write: "Step 1"} as we {draw:line} begin`)

	if len(res.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(res.Actions))
	}
	if len(res.Speech) != 1 {
		t.Fatalf("expected 1 speech segment, got %d", len(res.Speech))
	}
	if res.Speech[0].Text != "Watch closely  as we  begin" {
		t.Errorf("narration should have commands stripped in place, got %q", res.Speech[0].Text)
	}
}
