package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/registry"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/session"
)

type sentMessage struct {
	chatID int64
	text   string
	rows   [][]sender.Button
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
	rows      [][]sender.Button
}

type fakeTransport struct {
	nextID  int
	sends   []sentMessage
	edits   []editedMessage
	deletes []int
}

func (f *fakeTransport) Send(chatID int64, text string, rows ...[]sender.Button) (int, error) {
	f.nextID++
	f.sends = append(f.sends, sentMessage{chatID: chatID, text: text, rows: rows})
	return f.nextID, nil
}

func (f *fakeTransport) Edit(chatID int64, messageID int, text string, rows ...[]sender.Button) error {
	f.edits = append(f.edits, editedMessage{chatID: chatID, messageID: messageID, text: text, rows: rows})
	return nil
}

func (f *fakeTransport) Delete(chatID int64, messageID int) error {
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakeTransport) lastEdit() editedMessage {
	if len(f.edits) == 0 {
		return editedMessage{}
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeTransport) lastSend() sentMessage {
	if len(f.sends) == 0 {
		return sentMessage{}
	}
	return f.sends[len(f.sends)-1]
}

type launchedJob struct {
	kind       string
	srv        registry.Server
	target     string
	count      int
	addressing string
	mode       string
}

type fakeJobs struct {
	launched []launchedJob
}

func (f *fakeJobs) Ping(chatID int64, messageID int, srv registry.Server, target string, count int, userID int64) {
	f.launched = append(f.launched, launchedJob{kind: "ping", srv: srv, target: target, count: count})
}

func (f *fakeJobs) Trace(chatID int64, messageID int, srv registry.Server, target, addressing, mode string, userID int64) {
	f.launched = append(f.launched, launchedJob{kind: "trace", srv: srv, target: target, addressing: addressing, mode: mode})
}

func (f *fakeJobs) Install(chatID int64, messageID int, srv registry.Server, userID int64) {
	f.launched = append(f.launched, launchedJob{kind: "install", srv: srv})
}

type fakeCleaner struct {
	scheduled []time.Duration
}

func (f *fakeCleaner) ScheduleDelete(chatID int64, messageID int, delay time.Duration) {
	f.scheduled = append(f.scheduled, delay)
}

type memRegistry struct {
	servers []registry.Server
	saves   int
	saveErr error
}

func (m *memRegistry) List() []registry.Server {
	return append([]registry.Server(nil), m.servers...)
}

func (m *memRegistry) Len() int { return len(m.servers) }

func (m *memRegistry) Get(idx int) (registry.Server, bool) {
	if idx < 0 || idx >= len(m.servers) {
		return registry.Server{}, false
	}
	return m.servers[idx], true
}

func (m *memRegistry) Append(srv registry.Server) {
	m.servers = append(m.servers, srv)
}

func (m *memRegistry) Remove(idx int) (registry.Server, bool) {
	if idx < 0 || idx >= len(m.servers) {
		return registry.Server{}, false
	}
	srv := m.servers[idx]
	m.servers = append(m.servers[:idx], m.servers[idx+1:]...)
	return srv, true
}

func (m *memRegistry) Save() error {
	m.saves++
	return m.saveErr
}

type fixture struct {
	router   *Router
	sessions session.Store
	servers  *memRegistry
	jobs     *fakeJobs
	cleanup  *fakeCleaner
	tr       *fakeTransport
}

func newFixture(servers ...registry.Server) *fixture {
	f := &fixture{
		sessions: session.NewMemoryStore(),
		servers:  &memRegistry{servers: servers},
		jobs:     &fakeJobs{},
		cleanup:  &fakeCleaner{},
		tr:       &fakeTransport{},
	}
	f.router = NewRouter(f.sessions, f.servers, f.jobs, f.cleanup, f.tr)
	return f
}

func twoServers() []registry.Server {
	return []registry.Server{
		{Name: "tokyo", Host: "203.0.113.1", Port: 22, Username: "root", Password: "a"},
		{Name: "frankfurt", Host: "203.0.113.2", Port: 22, Username: "root", Password: "b"},
	}
}

const (
	userID = int64(100)
	chatID = int64(200)
)

func ctx() context.Context { return context.Background() }

func (f *fixture) hasSession(t *testing.T) *session.Session {
	t.Helper()
	s, ok := f.sessions.Get(userID)
	if !ok {
		t.Fatal("expected a session to exist")
	}
	return s
}

func (f *fixture) noSession(t *testing.T) {
	t.Helper()
	if _, ok := f.sessions.Get(userID); ok {
		t.Fatal("expected the session to be gone")
	}
}

func TestDecodeAction(t *testing.T) {
	cases := []struct {
		data   string
		family Family
		arg    string
		ok     bool
	}{
		{"server_3", FamilyServer, "3", true},
		{"installnexttrace_cancel", FamilyInstall, "cancel", true},
		{"rmserver_confirm", FamilyRmServer, "confirm", true},
		{"trace_mode_icmp", FamilyTraceMode, "icmp", true},
		{"count_10", FamilyCount, "10", true},
		{"iptype_ipv6", FamilyIPType, "ipv6", true},
		{"bogus_1", "", "", false},
		{"server", "", "", false},
	}
	for _, tc := range cases {
		act, ok := DecodeAction(tc.data)
		if ok != tc.ok {
			t.Fatalf("DecodeAction(%q) ok = %v, want %v", tc.data, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if act.Family != tc.family || act.Arg != tc.arg {
			t.Fatalf("DecodeAction(%q) = %+v", tc.data, act)
		}
		if act.Code() != tc.data {
			t.Fatalf("Code() = %q, want %q", act.Code(), tc.data)
		}
	}
}

func TestButtonWithoutSessionInstructsAndMutatesNothing(t *testing.T) {
	f := newFixture(twoServers()...)

	f.router.HandleButton(ctx(), userID, "server_0", chatID, 1)

	if got := f.tr.lastEdit().text; got != msgNoPendingButton {
		t.Fatalf("edit = %q", got)
	}
	f.noSession(t)
	if len(f.jobs.launched) != 0 {
		t.Fatal("no job should launch without a session")
	}
}

func TestTextWithoutSessionInstructs(t *testing.T) {
	f := newFixture(twoServers()...)

	f.router.HandleText(ctx(), userID, chatID, 1, "8.8.8.8")

	if got := f.tr.lastSend().text; got != msgNoPendingText {
		t.Fatalf("send = %q", got)
	}
	f.noSession(t)
}

func TestFamilyMismatchNeverMutatesSession(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, []string{"8.8.8.8"})
	before := *f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "trace_mode_icmp", chatID, before.MessageID)
	f.router.HandleButton(ctx(), userID, "iptype_ipv4", chatID, before.MessageID)
	f.router.HandleButton(ctx(), userID, "rmserver_0", chatID, before.MessageID)
	f.router.HandleButton(ctx(), userID, "installnexttrace_0", chatID, before.MessageID)

	after := *f.hasSession(t)
	if before != after {
		t.Fatalf("session mutated: before %+v after %+v", before, after)
	}
	if len(f.jobs.launched) != 0 {
		t.Fatal("mismatched families must not launch jobs")
	}
}

func TestServerFamilyRejectedForRemovalFlow(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartRmServer(ctx(), userID, chatID)
	before := *f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "server_0", chatID, before.MessageID)

	after := *f.hasSession(t)
	if before != after {
		t.Fatalf("session mutated: before %+v after %+v", before, after)
	}
	if got := f.tr.lastEdit().text; got != msgServerMismatch {
		t.Fatalf("edit = %q", got)
	}
}

func TestCommandPingRunsAfterServerSelection(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, []string{"8.8.8.8", "10"})
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "server_1", chatID, s.MessageID)

	if len(f.jobs.launched) != 1 {
		t.Fatalf("launched = %+v", f.jobs.launched)
	}
	job := f.jobs.launched[0]
	if job.kind != "ping" || job.srv.Name != "frankfurt" || job.target != "8.8.8.8" || job.count != 10 {
		t.Fatalf("job = %+v", job)
	}
	f.noSession(t)
}

func TestInteractivePingCollectsTargetThenCount(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, nil)
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "server_0", chatID, s.MessageID)
	if f.hasSession(t).Server == nil {
		t.Fatal("server snapshot not captured")
	}

	f.router.HandleText(ctx(), userID, chatID, 50, "example.com")
	edit := f.tr.lastEdit()
	if edit.text != msgChooseCount {
		t.Fatalf("expected count keyboard, got %q", edit.text)
	}
	if len(edit.rows) == 0 {
		t.Fatal("count keyboard missing")
	}

	f.router.HandleButton(ctx(), userID, "count_30", chatID, s.MessageID)
	if len(f.jobs.launched) != 1 || f.jobs.launched[0].count != 30 {
		t.Fatalf("launched = %+v", f.jobs.launched)
	}
	f.noSession(t)
}

func TestSecondTargetTextIsRejected(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, nil)
	s := f.hasSession(t)
	f.router.HandleButton(ctx(), userID, "server_0", chatID, s.MessageID)
	f.router.HandleText(ctx(), userID, chatID, 50, "example.com")

	f.router.HandleText(ctx(), userID, chatID, 51, "other.com")

	if got := f.tr.lastSend().text; got != msgTargetAlreadySet {
		t.Fatalf("send = %q", got)
	}
	if f.hasSession(t).Target != "example.com" {
		t.Fatal("target must not be overwritten")
	}
}

func TestCountWithoutServerAsksForRestart(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, nil)
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "count_5", chatID, s.MessageID)

	if got := f.tr.lastEdit().text; got != msgPingIncomplete {
		t.Fatalf("edit = %q", got)
	}
	if len(f.jobs.launched) != 0 {
		t.Fatal("incomplete session must not launch a job")
	}
}

func TestTraceLiteralIPSkipsProtocolChoice(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartNextTrace(ctx(), userID, chatID, []string{"8.8.8.8"})
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "trace_mode_tcp", chatID, s.MessageID)
	f.router.HandleButton(ctx(), userID, "server_0", chatID, s.MessageID)

	if len(f.jobs.launched) != 1 {
		t.Fatalf("launched = %+v", f.jobs.launched)
	}
	job := f.jobs.launched[0]
	if job.kind != "trace" || job.addressing != "direct" || job.mode != "tcp" || job.target != "8.8.8.8" {
		t.Fatalf("job = %+v", job)
	}
	f.noSession(t)
}

func TestTraceHostnameTriggersProtocolChoice(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartNextTrace(ctx(), userID, chatID, []string{"example.com"})
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "trace_mode_icmp", chatID, s.MessageID)
	f.router.HandleButton(ctx(), userID, "server_0", chatID, s.MessageID)

	if len(f.jobs.launched) != 0 {
		t.Fatal("hostname target must not launch before protocol choice")
	}
	edit := f.tr.lastEdit()
	if !strings.Contains(edit.text, msgChooseIPType) {
		t.Fatalf("expected protocol choice, got %q", edit.text)
	}

	f.router.HandleButton(ctx(), userID, "iptype_ipv6", chatID, s.MessageID)
	if len(f.jobs.launched) != 1 {
		t.Fatalf("launched = %+v", f.jobs.launched)
	}
	job := f.jobs.launched[0]
	if job.addressing != "IPv6" || job.mode != "icmp" {
		t.Fatalf("job = %+v", job)
	}
	f.noSession(t)
}

func TestServerSelectionOutOfRangeIsRecoverable(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, []string{"8.8.8.8"})
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "server_9", chatID, s.MessageID)

	if got := f.tr.lastEdit().text; got != msgBadServerIndex {
		t.Fatalf("edit = %q", got)
	}
	// The flow survives; a valid pick still works.
	f.router.HandleButton(ctx(), userID, "server_0", chatID, s.MessageID)
	if len(f.jobs.launched) != 1 {
		t.Fatalf("launched = %+v", f.jobs.launched)
	}
}

func TestRmServerConfirmRemovesSelectedRecord(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartRmServer(ctx(), userID, chatID)
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "rmserver_1", chatID, s.MessageID)
	if got := f.hasSession(t); !got.ConfirmDelete || got.ServerIdx != 1 {
		t.Fatalf("session after selection = %+v", got)
	}
	if f.servers.Len() != 2 {
		t.Fatal("selection alone must not remove")
	}

	f.router.HandleButton(ctx(), userID, "rmserver_confirm", chatID, s.MessageID)
	if f.servers.Len() != 1 || f.servers.servers[0].Name != "tokyo" {
		t.Fatalf("servers = %+v", f.servers.servers)
	}
	if f.servers.saves != 1 {
		t.Fatalf("saves = %d", f.servers.saves)
	}
	f.noSession(t)
}

func TestRmServerConfirmWithShrunkRegistryRemovesNothing(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartRmServer(ctx(), userID, chatID)
	s := f.hasSession(t)
	f.router.HandleButton(ctx(), userID, "rmserver_1", chatID, s.MessageID)

	// Registry shrinks between selection and confirmation.
	f.servers.Remove(0)

	f.router.HandleButton(ctx(), userID, "rmserver_confirm", chatID, s.MessageID)

	if f.servers.Len() != 1 {
		t.Fatalf("servers = %+v", f.servers.servers)
	}
	if got := f.tr.lastEdit().text; !strings.Contains(got, "/rmserver") {
		t.Fatalf("expected restart instruction, got %q", got)
	}
	f.noSession(t)
}

func TestRmServerAbortKeepsRegistry(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartRmServer(ctx(), userID, chatID)
	s := f.hasSession(t)
	f.router.HandleButton(ctx(), userID, "rmserver_1", chatID, s.MessageID)

	f.router.HandleButton(ctx(), userID, "rmserver_abort", chatID, s.MessageID)

	if f.servers.Len() != 2 {
		t.Fatal("abort must not remove anything")
	}
	f.noSession(t)
}

func TestInstallLaunchesJobAndDestroysSession(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartInstall(ctx(), userID, chatID)
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "installnexttrace_0", chatID, s.MessageID)

	if len(f.jobs.launched) != 1 || f.jobs.launched[0].kind != "install" {
		t.Fatalf("launched = %+v", f.jobs.launched)
	}
	if f.jobs.launched[0].srv.Name != "tokyo" {
		t.Fatalf("job = %+v", f.jobs.launched[0])
	}
	f.noSession(t)
}

func TestInstallStaleIndexEndsFlow(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartInstall(ctx(), userID, chatID)
	s := f.hasSession(t)

	f.router.HandleButton(ctx(), userID, "installnexttrace_7", chatID, s.MessageID)

	if len(f.jobs.launched) != 0 {
		t.Fatal("stale index must not launch a job")
	}
	if got := f.tr.lastEdit().text; !strings.Contains(got, "/install_nexttrace") {
		t.Fatalf("edit = %q", got)
	}
	f.noSession(t)
}

func TestWizardHappyPathAppendsAndPersists(t *testing.T) {
	f := newFixture()
	f.router.StartAddServer(ctx(), userID, chatID)

	inputs := []string{"srv1", "1.2.3.4", "22", "root", "pw", "yes"}
	for i, in := range inputs {
		f.router.HandleText(ctx(), userID, chatID, 100+i, in)
	}

	if f.servers.Len() != 1 {
		t.Fatalf("servers = %+v", f.servers.servers)
	}
	got := f.servers.servers[0]
	want := registry.Server{Name: "srv1", Host: "1.2.3.4", Port: 22, Username: "root", Password: "pw"}
	if got != want {
		t.Fatalf("record = %+v, want %+v", got, want)
	}
	if f.servers.saves != 1 {
		t.Fatalf("saves = %d", f.servers.saves)
	}
	f.noSession(t)
}

func TestWizardMasksPasswordInSummary(t *testing.T) {
	f := newFixture()
	f.router.StartAddServer(ctx(), userID, chatID)
	for i, in := range []string{"srv1", "1.2.3.4", "22", "root", "secret"} {
		f.router.HandleText(ctx(), userID, chatID, 100+i, in)
	}

	summary := f.tr.lastSend().text
	if strings.Contains(summary, "secret") {
		t.Fatalf("summary leaks the password: %q", summary)
	}
	if !strings.Contains(summary, strings.Repeat("*", len("secret"))) {
		t.Fatalf("summary missing mask: %q", summary)
	}
}

func TestWizardBadPortStaysOnStepThree(t *testing.T) {
	f := newFixture()
	f.router.StartAddServer(ctx(), userID, chatID)
	f.router.HandleText(ctx(), userID, chatID, 100, "srv1")
	f.router.HandleText(ctx(), userID, chatID, 101, "1.2.3.4")

	f.router.HandleText(ctx(), userID, chatID, 102, "abc")

	s := f.hasSession(t)
	if s.Step != 3 {
		t.Fatalf("step = %d, want 3", s.Step)
	}
	if s.Draft.Port != 0 {
		t.Fatalf("port captured from bad input: %d", s.Draft.Port)
	}
	if !strings.Contains(f.tr.lastSend().text, "must be a number") {
		t.Fatalf("re-prompt = %q", f.tr.lastSend().text)
	}

	// A numeric port recovers the flow.
	f.router.HandleText(ctx(), userID, chatID, 103, "2222")
	if s := f.hasSession(t); s.Step != 4 || s.Draft.Port != 2222 {
		t.Fatalf("session = %+v", s)
	}
	if f.servers.Len() != 0 {
		t.Fatal("no partial record may be created")
	}
}

func TestWizardNonYesConfirmationDiscards(t *testing.T) {
	f := newFixture()
	f.router.StartAddServer(ctx(), userID, chatID)
	for i, in := range []string{"srv1", "1.2.3.4", "22", "root", "pw", "no"} {
		f.router.HandleText(ctx(), userID, chatID, 100+i, in)
	}

	if f.servers.Len() != 0 {
		t.Fatalf("servers = %+v", f.servers.servers)
	}
	if got := f.tr.lastSend().text; got != msgWizardCancelled {
		t.Fatalf("send = %q", got)
	}
	f.noSession(t)
}

func TestWizardCancelTokenCleansUp(t *testing.T) {
	f := newFixture()
	f.router.StartAddServer(ctx(), userID, chatID)
	f.router.HandleText(ctx(), userID, chatID, 100, "srv1")
	promptID := f.hasSession(t).PromptMessageID

	f.router.HandleText(ctx(), userID, chatID, 101, "/cancel")

	f.noSession(t)
	found := false
	for _, id := range f.tr.deletes {
		if id == promptID {
			found = true
		}
	}
	if !found {
		t.Fatalf("prompt %d not deleted, deletes = %v", promptID, f.tr.deletes)
	}
	if got := f.tr.lastSend().text; got != msgWizardCancelled {
		t.Fatalf("send = %q", got)
	}
}

func TestWizardPersistFailureReportsError(t *testing.T) {
	f := newFixture()
	f.servers.saveErr = errors.New("disk full")
	f.router.StartAddServer(ctx(), userID, chatID)
	for i, in := range []string{"srv1", "1.2.3.4", "22", "root", "pw", "yes"} {
		f.router.HandleText(ctx(), userID, chatID, 100+i, in)
	}

	if got := f.tr.lastSend().text; !strings.Contains(got, "disk full") {
		t.Fatalf("send = %q", got)
	}
	f.noSession(t)
}

func TestCancelCommandDestroysSession(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, nil)
	f.hasSession(t)

	f.router.Cancel(ctx(), userID, chatID)

	f.noSession(t)
	if got := f.tr.lastSend().text; got != msgCancelled {
		t.Fatalf("send = %q", got)
	}

	f.router.Cancel(ctx(), userID, chatID)
	if got := f.tr.lastSend().text; got != msgNothingToCancel {
		t.Fatalf("send = %q", got)
	}
}

func TestStartCommandsRequireServers(t *testing.T) {
	f := newFixture()
	f.router.StartPing(ctx(), userID, chatID, nil)
	f.router.StartNextTrace(ctx(), userID, chatID, nil)
	f.router.StartRmServer(ctx(), userID, chatID)
	f.router.StartInstall(ctx(), userID, chatID)

	f.noSession(t)
	for _, m := range f.tr.sends {
		if m.text != msgNoServers {
			t.Fatalf("send = %q", m.text)
		}
	}
}

func TestServersListing(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.Servers(ctx(), chatID)

	got := f.tr.lastSend().text
	if !strings.Contains(got, "tokyo (203.0.113.1:22)") || !strings.Contains(got, "frankfurt (203.0.113.2:22)") {
		t.Fatalf("listing = %q", got)
	}
}

func TestCommandModeRejectsFreeText(t *testing.T) {
	f := newFixture(twoServers()...)
	f.router.StartPing(ctx(), userID, chatID, []string{"8.8.8.8"})

	f.router.HandleText(ctx(), userID, chatID, 50, "another-target")

	if got := f.tr.lastSend().text; got != fmt.Sprintf(msgCommandModeNoText, "/ping") {
		t.Fatalf("send = %q", got)
	}
	if f.hasSession(t).Target != "8.8.8.8" {
		t.Fatal("target must not change")
	}
}
