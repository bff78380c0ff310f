package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuetrace/opencue/internal/advisor"
	"github.com/cuetrace/opencue/internal/cue"
	"github.com/cuetrace/opencue/internal/profanity"
)

func testDetector(t *testing.T) *profanity.Detector {
	t.Helper()
	lex := &profanity.Lexicon{
		Version: "1.0",
		Categories: map[string]profanity.Category{
			"profanity": {
				"strong": []profanity.Entry{{Word: "damn"}},
			},
			"blasphemy": {
				"mild": []profanity.Entry{{Word: "hell", ContextRequired: true}},
			},
		},
	}
	return profanity.NewDetector(lex)
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	cat, err := cue.NewCatalogue(dir)
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	return NewManager(cat, testDetector(t))
}

func newTestSession(t *testing.T, mgr *Manager) (*Session, *[]OutEvent) {
	t.Helper()
	var events []OutEvent
	sess := mgr.NewSession(func(ev OutEvent) { events = append(events, ev) })
	t.Cleanup(sess.Close)
	return sess, &events
}

type fakeAdvisor struct {
	verdict advisor.Verdict
	err     error
	calls   int
}

func (f *fakeAdvisor) Analyze(ctx context.Context, text, word, category, contextText string) (advisor.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

func writeCueFile(t *testing.T, mgr *Manager, stem string, f *cue.File) {
	t.Helper()
	if _, err := mgr.Catalogue.Add(f, stem); err != nil {
		t.Fatalf("Catalogue.Add: %v", err)
	}
}

func lastEventOfType(events []OutEvent, typ string) (OutEvent, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			return events[i], true
		}
	}
	return OutEvent{}, false
}

func TestHandleSubtitleRealtimeDetectionDispatchesOverlay(t *testing.T) {
	mgr := testManager(t)
	sess, events := newTestSession(t, mgr)
	sess.Mode = ModeRealtime

	sess.HandleSubtitle("well damn it all", 1000, 2000, 1000, "content-1")

	ev, ok := lastEventOfType(*events, "overlay")
	if !ok {
		t.Fatalf("expected an overlay event, got %+v", *events)
	}
	p, ok := ev.Payload.(overlayPayload)
	if !ok {
		t.Fatalf("overlay payload has wrong type: %T", ev.Payload)
	}
	if p.Matched != "damn" {
		t.Errorf("matched = %q, want damn", p.Matched)
	}
	if p.Action != string(cue.ActionMute) {
		t.Errorf("action = %q, want mute", p.Action)
	}
	if p.ContentID != "content-1" {
		t.Errorf("content id = %q, want content-1", p.ContentID)
	}
}

func TestHandleSubtitleNonRealtimeModeSkipsDetection(t *testing.T) {
	mgr := testManager(t)
	sess, events := newTestSession(t, mgr)
	sess.Mode = ModeCueFile

	sess.HandleSubtitle("well damn it all", 1000, 2000, 1000, "")

	if _, ok := lastEventOfType(*events, "overlay"); ok {
		t.Errorf("cue_file mode should not run realtime detection, got an overlay event")
	}
}

func TestHandleSubtitleDeduplicatesWithinWindow(t *testing.T) {
	mgr := testManager(t)
	sess, events := newTestSession(t, mgr)
	sess.Mode = ModeRealtime

	sess.HandleSubtitle("well damn it all", 0, 1000, 5000, "")
	sess.HandleSubtitle("well damn it all", 0, 1000, 5200, "")

	count := 0
	for _, ev := range *events {
		if ev.Type == "overlay" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d overlay events, want 1 (second is a near-duplicate)", count)
	}
}

func TestHandleSubtitleDuplicateOutsideWindowIsNotDeduped(t *testing.T) {
	mgr := testManager(t)
	sess, events := newTestSession(t, mgr)
	sess.Mode = ModeRealtime

	sess.HandleSubtitle("well damn it all", 0, 1000, 5000, "")
	sess.HandleSubtitle("well damn it all", 0, 1000, 6000, "")

	count := 0
	for _, ev := range *events {
		if ev.Type == "overlay" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("got %d overlay events, want 2 (1000ms apart, outside the 300ms dedup window)", count)
	}
}

func TestHandleSubtitleContextSensitiveAdvisorSuppresses(t *testing.T) {
	mgr := testManager(t)
	mgr.Advisor = &fakeAdvisor{verdict: advisor.Verdict{ShouldFilter: false, Reason: "proper_noun"}}
	sess, events := newTestSession(t, mgr)
	sess.Mode = ModeRealtime

	sess.HandleSubtitle("oh hell!", 0, 1000, 0, "")

	if _, ok := lastEventOfType(*events, "overlay"); ok {
		t.Errorf("advisor vetoed the detection, expected no overlay event")
	}
}

func TestHandleSubtitleContextSensitiveAdvisorApproves(t *testing.T) {
	mgr := testManager(t)
	fa := &fakeAdvisor{verdict: advisor.Verdict{ShouldFilter: true, ContextType: "exclamation"}}
	mgr.Advisor = fa
	sess, events := newTestSession(t, mgr)
	sess.Mode = ModeRealtime

	sess.HandleSubtitle("oh hell!", 0, 1000, 0, "")

	ev, ok := lastEventOfType(*events, "overlay")
	if !ok {
		t.Fatalf("advisor approved filtering, expected an overlay event")
	}
	p := ev.Payload.(overlayPayload)
	if p.ContextType != "exclamation" {
		t.Errorf("context type = %q, want exclamation", p.ContextType)
	}
	if fa.calls != 1 {
		t.Errorf("advisor called %d times, want 1", fa.calls)
	}
}

func TestHandleSubtitleAdvisorErrorDefaultsToFilter(t *testing.T) {
	mgr := testManager(t)
	mgr.Advisor = &fakeAdvisor{err: context.DeadlineExceeded}
	sess, events := newTestSession(t, mgr)
	sess.Mode = ModeRealtime

	sess.HandleSubtitle("oh hell!", 0, 1000, 0, "")

	if _, ok := lastEventOfType(*events, "overlay"); !ok {
		t.Errorf("advisor error should default to ShouldFilter=true, expected an overlay event")
	}
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	mgr := testManager(t)
	sess, _ := newTestSession(t, mgr)

	if err := sess.SetMode("bogus", ""); err == nil {
		t.Fatal("expected an error for an unrecognised mode")
	}
}

func TestSetModeCueFileSubtitleTierStartsSyncing(t *testing.T) {
	mgr := testManager(t)
	writeCueFile(t, mgr, "movie-one", &cue.File{
		Content: cue.Content{Title: "Movie One", DurationMs: 60_000},
		Subtitles: []cue.SubtitleMarker{
			{TimeMs: 1_000, Text: "a line of dialogue appears here"},
		},
		Metadata: cue.Metadata{Created: time.Now()},
	})
	sess, events := newTestSession(t, mgr)

	if err := sess.SetMode("cue_file", "movie-one"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if sess.syncEngine == nil {
		t.Fatal("expected a subtitle sync engine to be created")
	}
	ev, ok := lastEventOfType(*events, "syncState")
	if !ok {
		t.Fatal("expected a syncState event")
	}
	p := ev.Payload.(syncStatePayload)
	if p.State != "syncing" || p.Mode != "subtitle" {
		t.Errorf("syncState = %+v, want state=syncing mode=subtitle", p)
	}
}

func TestSetModeCueFileNoSyncDataFallsBackToTimestamp(t *testing.T) {
	mgr := testManager(t)
	writeCueFile(t, mgr, "movie-two", &cue.File{
		Content: cue.Content{Title: "Movie Two", DurationMs: 60_000},
		Cues: []cue.Cue{
			{ID: "cue_1", StartMs: 5_000, EndMs: 5_500, Action: cue.ActionMute, Word: "damn"},
		},
		Metadata: cue.Metadata{Created: time.Now()},
	})
	sess, events := newTestSession(t, mgr)

	if err := sess.SetMode("cue_file", "movie-two"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	synced, offsetMs, _ := sess.syncSnapshot()
	if !synced || offsetMs != 0 {
		t.Errorf("synced=%v offsetMs=%d, want synced=true offsetMs=0", synced, offsetMs)
	}
	ev, ok := lastEventOfType(*events, "syncState")
	if !ok {
		t.Fatal("expected a syncState event")
	}
	p := ev.Payload.(syncStatePayload)
	if p.State != "synced" || p.Mode != "timestamp" {
		t.Errorf("syncState = %+v, want state=synced mode=timestamp", p)
	}
}

func TestHandlePositionTriggersAndEndsCues(t *testing.T) {
	mgr := testManager(t)
	writeCueFile(t, mgr, "movie-three", &cue.File{
		Content: cue.Content{Title: "Movie Three", DurationMs: 60_000},
		Cues: []cue.Cue{
			{ID: "cue_1", StartMs: 10_000, EndMs: 11_000, Action: cue.ActionMute, Word: "damn"},
		},
		Metadata: cue.Metadata{Created: time.Now()},
	})
	sess, events := newTestSession(t, mgr)
	if err := sess.SetMode("cue_file", "movie-three"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	sess.HandlePosition(9_900) // within the 200ms timestamp-only lookahead of 10_000
	if !sess.active["cue_1"] {
		t.Fatal("expected cue_1 to become active within the lookahead window")
	}
	if _, ok := lastEventOfType(*events, "overlay"); !ok {
		t.Fatal("expected an overlay event on trigger")
	}

	sess.HandlePosition(11_000)
	if sess.active["cue_1"] {
		t.Fatal("expected cue_1 to end once position reaches end_ms")
	}
	if _, ok := lastEventOfType(*events, "cueEnd"); !ok {
		t.Fatal("expected a cueEnd event")
	}
}

func TestHandleSeekClearsTriggeredAheadAndEndsActive(t *testing.T) {
	mgr := testManager(t)
	writeCueFile(t, mgr, "movie-four", &cue.File{
		Content: cue.Content{Title: "Movie Four", DurationMs: 60_000},
		Cues: []cue.Cue{
			{ID: "cue_1", StartMs: 10_000, EndMs: 11_000, Action: cue.ActionMute, Word: "damn"},
			{ID: "cue_2", StartMs: 20_000, EndMs: 21_000, Action: cue.ActionMute, Word: "hell"},
		},
		Metadata: cue.Metadata{Created: time.Now()},
	})
	sess, _ := newTestSession(t, mgr)
	if err := sess.SetMode("cue_file", "movie-four"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	sess.HandlePosition(10_200)
	if !sess.active["cue_1"] {
		t.Fatal("expected cue_1 active before seek")
	}
	sess.triggered["cue_2"] = true // simulate having already passed cue_2 once

	sess.HandleSeek(5_000)

	if sess.active["cue_1"] {
		t.Error("seeking before cue_1's start should end it")
	}
	if sess.triggered["cue_2"] {
		t.Error("seeking before cue_2's start should clear its triggered flag")
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	mgr := testManager(t)
	sess, _ := newTestSession(t, mgr)

	started := sess.StartRecording("My Recording", "content-9")
	if started.Title != "My Recording" {
		t.Fatalf("started.Title = %q", started.Title)
	}
	if sess.Mode != ModeRecording {
		t.Fatalf("mode = %q, want recording", sess.Mode)
	}

	sess.lastPositionMs = 1_000
	sess.HandleSubtitle("this has the word damn in it", 1_000, 2_000, 1_000, "content-9")

	if len(sess.recording.cues) != 1 {
		t.Fatalf("recorded %d cues, want 1", len(sess.recording.cues))
	}

	sess.lastPositionMs = 5_000
	stopped, err := sess.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if stopped.CueCount != 1 {
		t.Errorf("stopped.CueCount = %d, want 1", stopped.CueCount)
	}
	if sess.Mode != ModeRealtime {
		t.Errorf("mode after stop = %q, want realtime", sess.Mode)
	}

	data, err := os.ReadFile(stopped.Path)
	if err != nil {
		t.Fatalf("reading sealed recording: %v", err)
	}
	var f cue.File
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal sealed recording: %v", err)
	}
	if len(f.Cues) != 1 || f.Cues[0].Word != "damn" {
		t.Errorf("sealed file cues = %+v", f.Cues)
	}
	if f.Version != cue.CurrentVersion {
		t.Errorf("version = %q, want %q", f.Version, cue.CurrentVersion)
	}
}

func TestStopRecordingWithoutStartingFails(t *testing.T) {
	mgr := testManager(t)
	sess, _ := newTestSession(t, mgr)

	if _, err := sess.StopRecording(); err == nil {
		t.Fatal("expected an error stopping a recording that was never started")
	}
}

func TestAbortRecordingDiscardsProgress(t *testing.T) {
	mgr := testManager(t)
	sess, _ := newTestSession(t, mgr)

	sess.StartRecording("Scratch", "")
	sess.HandleSubtitle("this has the word damn in it", 0, 1000, 0, "")

	discardedCues, _ := sess.AbortRecording()
	if discardedCues != 1 {
		t.Errorf("discardedCues = %d, want 1", discardedCues)
	}
	if sess.recording.active {
		t.Error("recording should no longer be active after abort")
	}
	if sess.Mode != ModeRealtime {
		t.Errorf("mode after abort = %q, want realtime", sess.Mode)
	}
}

func TestPauseAndResumeRecording(t *testing.T) {
	mgr := testManager(t)
	sess, _ := newTestSession(t, mgr)

	sess.StartRecording("Scratch", "")
	if !sess.PauseRecording() {
		t.Fatal("PauseRecording should report true while a recording is active")
	}
	if sess.recording.active {
		t.Error("recording.active should be false while paused")
	}

	sess.ResumeRecording(2_000)
	if !sess.recording.active {
		t.Error("recording.active should be true after resume")
	}
	if sess.recording.startPositionMs != 2_000 {
		t.Errorf("startPositionMs = %d, want 2000 (no cues recorded yet, so resume re-anchors)", sess.recording.startPositionMs)
	}
}

func TestGetSessionInfoReflectsState(t *testing.T) {
	mgr := testManager(t)
	sess, _ := newTestSession(t, mgr)
	sess.ContentID = "content-1"

	info := sess.GetSessionInfo()
	if info.ID != sess.ID {
		t.Errorf("info.ID = %q, want %q", info.ID, sess.ID)
	}
	if info.Mode != string(ModeRealtime) {
		t.Errorf("info.Mode = %q, want realtime", info.Mode)
	}
	if info.ContentID != "content-1" {
		t.Errorf("info.ContentID = %q, want content-1", info.ContentID)
	}
}

func TestManagerStatsAggregatesSessions(t *testing.T) {
	mgr := testManager(t)
	_, _ = newTestSession(t, mgr)
	_, _ = newTestSession(t, mgr)

	stats := mgr.Stats()
	if stats.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", stats.TotalSessions)
	}
	if len(stats.Sessions) != 2 {
		t.Errorf("len(Sessions) = %d, want 2", len(stats.Sessions))
	}
}

func TestSanitizeFilenameUsedForRecordingPath(t *testing.T) {
	mgr := testManager(t)
	sess, _ := newTestSession(t, mgr)

	sess.StartRecording("Weird/Title: With Spaces!", "")
	sess.lastPositionMs = 1_000
	stopped, err := sess.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if filepath.Base(stopped.Path) == "" {
		t.Fatalf("expected a non-empty sealed path, got %q", stopped.Path)
	}
}
