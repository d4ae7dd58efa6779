// Package script parses machine-generated lesson scripts into two
// time-ordered timelines: narration speech segments and discrete
// whiteboard actions.
//
// The grammar is line-oriented. A line may start with a `[MM:SS]`
// timestamp; the rest of the line (or the whole line, when no
// timestamp is present) is payload attributed to the most recent
// timestamp. Payloads embed commands in braces:
//
//	{write: "TEXT"}  {draw:circle}  {highlight: "TEXT"}
//	{erase: "TEXT"}  {newpage: "TEXT"}
//
// Parsing is total: malformed lines degrade to plain narration and
// unrecognized brace groups are dropped. Parse never fails.
package script

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
)

// timestampPattern anchors a two-digit [MM:SS] prefix at line start.
var timestampPattern = regexp.MustCompile(`^\[(\d{2}):(\d{2})\]`)

// bracePattern finds non-nested brace groups: `{` up to the next `}`.
var bracePattern = regexp.MustCompile(`\{[^{}]*\}`)

// Command forms. Draw takes a bare lowercase token; the other four take
// a quoted string.
var (
	quotedCmdPattern = regexp.MustCompile(`^\{(write|highlight|erase|newpage):\s*"([^"]*)"\s*\}$`)
	drawCmdPattern   = regexp.MustCompile(`^\{draw:\s*([a-z][a-z0-9_]*)\s*\}$`)
)

var kindByVerb = map[string]domain.ActionKind{
	"write":     domain.ActionWrite,
	"highlight": domain.ActionHighlight,
	"erase":     domain.ActionErase,
	"newpage":   domain.ActionNewPage,
}

// Result holds the two timelines extracted from one script. Actions and
// speech are independent outputs; a line can contribute to both, either,
// or neither.
type Result struct {
	Actions []domain.Action
	Speech  []domain.SpeechSegment
}

// Parse converts a raw lesson script into its action and speech
// timelines. Timestamps are taken as offsets from playback start.
func Parse(text string) Result {
	var res Result

	current := time.Duration(0)  // timestamp payload lines attach to
	previous := time.Duration(0) // previous timestamp, for implied durations
	sawTimestamp := false

	for _, line := range strings.Split(text, "\n") {
		payload := line
		implied := time.Duration(0)

		if m := timestampPattern.FindStringSubmatch(line); m != nil {
			minutes, _ := strconv.Atoi(m[1])
			seconds, _ := strconv.Atoi(m[2])
			ts := time.Duration(minutes*60+seconds) * time.Second

			if sawTimestamp {
				implied = ts - previous
			}
			previous = ts
			current = ts
			sawTimestamp = true
			payload = line[len(m[0]):]
		}

		res.Actions = append(res.Actions, extractActions(payload, current)...)

		narration := strings.TrimSpace(bracePattern.ReplaceAllString(payload, ""))
		if narration != "" {
			res.Speech = append(res.Speech, domain.SpeechSegment{
				Text:            narration,
				StartAt:         current,
				ImpliedDuration: implied,
			})
		}
	}

	return res
}

// extractActions pulls every recognized command out of a payload.
// Unrecognized brace groups are dropped silently.
func extractActions(payload string, at time.Duration) []domain.Action {
	var actions []domain.Action
	for _, group := range bracePattern.FindAllString(payload, -1) {
		if m := quotedCmdPattern.FindStringSubmatch(group); m != nil {
			actions = append(actions, domain.Action{
				Kind:    kindByVerb[m[1]],
				Payload: m[2],
				DueAt:   at,
			})
			continue
		}
		if m := drawCmdPattern.FindStringSubmatch(group); m != nil {
			actions = append(actions, domain.Action{
				Kind:    domain.ActionDraw,
				Payload: m[1],
				DueAt:   at,
			})
		}
	}
	return actions
}
