package moderation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/staneins/SokrytBot/internal/bot"
	"github.com/staneins/SokrytBot/internal/db"
)

const (
	testChatID  = int64(-1001000)
	testSelfID  = int64(999)
	testAdminID = int64(1)
)

type sentMessage struct {
	chatID int64
	text   string
	opts   bot.SendOptions
}

type fakeOps struct {
	mutex sync.Mutex

	adminIDs   map[int64][]int64
	adminErr   error
	adminCalls int

	banErr      error
	restrictErr error

	sent         []sentMessage
	edits        []string
	deleted      []int
	banned       []int64
	restricted   []int64
	unrestricted []int64
	answered     []string

	nextMessageID int
}

func (o *fakeOps) SendMessage(_ context.Context, chatID int64, text string, opts bot.SendOptions) (int, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.nextMessageID++
	o.sent = append(o.sent, sentMessage{chatID: chatID, text: text, opts: opts})
	return o.nextMessageID, nil
}

func (o *fakeOps) EditMessage(_ context.Context, _ int64, _ int, text string, _ string) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.edits = append(o.edits, text)
	return nil
}

func (o *fakeOps) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.deleted = append(o.deleted, messageID)
	return nil
}

func (o *fakeOps) AnswerCallback(_ context.Context, _, text string) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.answered = append(o.answered, text)
	return nil
}

func (o *fakeOps) BanMember(_ context.Context, _ int64, userID int64, _ time.Time) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.banErr != nil {
		return o.banErr
	}
	o.banned = append(o.banned, userID)
	return nil
}

func (o *fakeOps) RestrictMember(_ context.Context, _ int64, userID int64, _ time.Time) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.restrictErr != nil {
		return o.restrictErr
	}
	o.restricted = append(o.restricted, userID)
	return nil
}

func (o *fakeOps) UnrestrictMember(_ context.Context, _ int64, userID int64) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.unrestricted = append(o.unrestricted, userID)
	return nil
}

func (o *fakeOps) GetChatAdministrators(_ context.Context, chatID int64) ([]int64, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.adminCalls++
	if o.adminErr != nil {
		return nil, o.adminErr
	}
	return o.adminIDs[chatID], nil
}

func (o *fakeOps) sentTexts() []string {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	texts := make([]string, 0, len(o.sent))
	for _, msg := range o.sent {
		texts = append(texts, msg.text)
	}
	return texts
}

type fakeStore struct {
	mutex    sync.Mutex
	members  map[string]db.ChatMember
	keywords map[int64][]string
	configs  map[int64]db.ChatConfig
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:  make(map[string]db.ChatMember),
		keywords: make(map[int64][]string),
		configs:  make(map[int64]db.ChatConfig),
	}
}

func memberKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) GetMember(_ context.Context, chatID, userID int64) (*db.ChatMember, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	member, ok := s.members[memberKey(chatID, userID)]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

func (s *fakeStore) SaveMember(_ context.Context, member *db.ChatMember) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.members[memberKey(member.ChatID, member.UserID)] = *member
	return nil
}

func (s *fakeStore) InsertMemberIfAbsent(_ context.Context, member *db.ChatMember) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := memberKey(member.ChatID, member.UserID)
	if _, ok := s.members[key]; !ok {
		s.members[key] = *member
	}
	return nil
}

func (s *fakeStore) GetKeywords(_ context.Context, chatID int64) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.keywords[chatID], nil
}

func (s *fakeStore) SetKeywords(_ context.Context, chatID int64, keywords []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.keywords[chatID] = keywords
	return nil
}

func (s *fakeStore) ClearKeywords(_ context.Context, chatID int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.keywords, chatID)
	return nil
}

func (s *fakeStore) GetChatConfig(_ context.Context, chatID int64) (*db.ChatConfig, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cfg, ok := s.configs[chatID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (s *fakeStore) SetChatConfig(_ context.Context, cfg *db.ChatConfig) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.configs[cfg.ChatID] = *cfg
	return nil
}

func (s *fakeStore) GetChatConfigsWithRecurrentText(_ context.Context) ([]*db.ChatConfig, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	configs := make([]*db.ChatConfig, 0)
	for chatID := range s.configs {
		cfg := s.configs[chatID]
		if cfg.RecurrentText != "" {
			configs = append(configs, &cfg)
		}
	}
	return configs, nil
}

type fakeService struct {
	ops   *fakeOps
	store *fakeStore
}

func (s *fakeService) GetBot() *api.BotAPI { return nil }
func (s *fakeService) GetOps() bot.ChatOps { return s.ops }
func (s *fakeService) GetDB() db.Client    { return s.store }

func (s *fakeService) GetChatConfig(ctx context.Context, chatID int64) (*db.ChatConfig, error) {
	return s.store.GetChatConfig(ctx, chatID)
}

func (s *fakeService) GetLanguage(context.Context, int64) string { return "ru" }

type testEnv struct {
	ops    *fakeOps
	store  *fakeStore
	admins *AdminCache
	roster *BannedRoster
	warden *Warden
	mod    *Moderator
}

func newTestEnv(t *testing.T, adminIDs ...int64) *testEnv {
	t.Helper()

	ops := &fakeOps{
		adminIDs:      map[int64][]int64{testChatID: adminIDs},
		nextMessageID: 100,
	}
	store := newFakeStore()
	admins := NewAdminCache(ops, testSelfID)
	roster := NewBannedRoster(time.Minute)
	t.Cleanup(func() { _ = roster.Stop(context.Background()) })
	warden := NewWarden(ops, store, admins, roster, 3, 24*time.Hour)
	mod := NewModerator(&fakeService{ops: ops, store: store}, warden, admins, roster)

	return &testEnv{ops: ops, store: store, admins: admins, roster: roster, warden: warden, mod: mod}
}

func commandMessage(from *api.User, text string, reply *api.Message) *api.Message {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		length = i
	}
	return &api.Message{
		MessageID:      42,
		From:           from,
		Text:           text,
		Entities:       []api.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
		ReplyToMessage: reply,
	}
}

func handleMessage(t *testing.T, env *testEnv, msg *api.Message) {
	t.Helper()
	chat := &api.Chat{ID: testChatID, Title: "test chat"}
	if _, err := env.mod.Handle(context.Background(), &api.Update{Message: msg}, chat, msg.From); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestWarnEscalationThirdWarnBans(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	admin := &api.User{ID: testAdminID, FirstName: "Admin"}
	target := &api.User{ID: 50, FirstName: "Spammer"}
	targetMsg := &api.Message{MessageID: 7, From: target, Text: "spam"}

	for i := 0; i < 3; i++ {
		handleMessage(t, env, commandMessage(admin, "/warn", targetMsg))
	}

	if len(env.ops.banned) != 1 || env.ops.banned[0] != target.ID {
		t.Fatalf("expected exactly one remote ban of the target, got %v", env.ops.banned)
	}
	member, _ := env.store.GetMember(context.Background(), testChatID, target.ID)
	if member == nil || !member.Banned {
		t.Fatalf("expected persisted ban flag, got %#v", member)
	}
	if member.WarnCount() != 0 {
		t.Fatalf("expected warn counter reset to 0 after ban, got %d", member.WarnCount())
	}
	if !env.roster.Contains(target.ID) {
		t.Fatal("expected banned user remembered in roster")
	}
	if !env.roster.Running() {
		t.Fatal("expected cleanup ticker running after ban")
	}

	texts := env.ops.sentTexts()
	if !strings.Contains(texts[0], "предупрежден. Количество предупреждений: 1 из 3") {
		t.Fatalf("unexpected first warn notice: %q", texts[0])
	}
	if !strings.Contains(texts[len(texts)-1], "уничтожен") {
		t.Fatalf("unexpected ban notice: %q", texts[len(texts)-1])
	}
}

func TestCheckNeverWarnedReportsZeroWithoutRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	admin := &api.User{ID: testAdminID, FirstName: "Admin"}
	target := &api.User{ID: 60, FirstName: "Quiet"}
	targetMsg := &api.Message{MessageID: 8, From: target, Text: "hi"}

	handleMessage(t, env, commandMessage(admin, "/check", targetMsg))

	texts := env.ops.sentTexts()
	if !strings.Contains(texts[len(texts)-1], "0 из 3") {
		t.Fatalf("expected zero warn report, got %q", texts[len(texts)-1])
	}
	if member, _ := env.store.GetMember(context.Background(), testChatID, target.ID); member != nil {
		t.Fatalf("check must not persist a record, got %#v", member)
	}

	// The first real warn still yields 1, not 2.
	handleMessage(t, env, commandMessage(admin, "/warn", targetMsg))
	texts = env.ops.sentTexts()
	if !strings.Contains(texts[len(texts)-1], "1 из 3") {
		t.Fatalf("expected first warn to report 1, got %q", texts[len(texts)-1])
	}
}

func TestCommandMustBeReply(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	admin := &api.User{ID: testAdminID, FirstName: "Admin"}

	handleMessage(t, env, commandMessage(admin, "/warn", nil))

	texts := env.ops.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], msgReplyRequired) {
		t.Fatalf("expected usage rejection, got %v", texts)
	}
	if len(env.ops.banned) != 0 || len(env.ops.restricted) != 0 {
		t.Fatal("expected no remote action")
	}
}

func TestNonAdminCommandRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	stranger := &api.User{ID: 77, FirstName: "Stranger"}
	target := &api.User{ID: 50, FirstName: "Victim"}
	targetMsg := &api.Message{MessageID: 7, From: target, Text: "hello"}

	handleMessage(t, env, commandMessage(stranger, "/ban", targetMsg))

	texts := env.ops.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], msgAdminsOnly) {
		t.Fatalf("expected authorization rejection, got %v", texts)
	}
	if len(env.ops.banned) != 0 {
		t.Fatal("expected no remote ban")
	}
}

func TestBanAlreadyBannedIsNoOp(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	admin := &api.User{ID: testAdminID, FirstName: "Admin"}
	target := &api.User{ID: 50, FirstName: "Gone"}
	banned := db.ChatMember{ChatID: testChatID, UserID: target.ID, Banned: true}
	if err := env.store.SaveMember(context.Background(), &banned); err != nil {
		t.Fatal(err)
	}
	targetMsg := &api.Message{MessageID: 7, From: target, Text: "hello"}

	handleMessage(t, env, commandMessage(admin, "/ban", targetMsg))

	if len(env.ops.banned) != 0 {
		t.Fatalf("expected no duplicate remote ban, got %v", env.ops.banned)
	}
	texts := env.ops.sentTexts()
	if !strings.Contains(texts[len(texts)-1], msgAlreadyBanned) {
		t.Fatalf("expected already-banned response, got %v", texts)
	}
}

func TestBanRejectsAdministratorTarget(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID, 2)
	admin := &api.User{ID: testAdminID, FirstName: "Admin"}
	otherAdmin := &api.User{ID: 2, FirstName: "Other"}
	targetMsg := &api.Message{MessageID: 7, From: otherAdmin, Text: "hello"}

	handleMessage(t, env, commandMessage(admin, "/ban", targetMsg))

	if len(env.ops.banned) != 0 {
		t.Fatal("expected no remote ban of an administrator")
	}
	texts := env.ops.sentTexts()
	if !strings.Contains(texts[len(texts)-1], msgCantBanAdmin) {
		t.Fatalf("expected admin-target rejection, got %v", texts)
	}
}

func TestKeywordTriggerMutesNonAdminOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	if err := env.store.SetKeywords(context.Background(), testChatID, []string{"казино"}); err != nil {
		t.Fatal(err)
	}

	sender := &api.User{ID: 88, FirstName: "Chatty"}
	handleMessage(t, env, &api.Message{MessageID: 9, From: sender, Text: "лучшее КАЗИНО города"})

	if len(env.ops.restricted) != 1 || env.ops.restricted[0] != sender.ID {
		t.Fatalf("expected exactly one mute, got %v", env.ops.restricted)
	}
	texts := env.ops.sentTexts()
	last := env.ops.sent[len(env.ops.sent)-1]
	if !strings.Contains(texts[len(texts)-1], "обеззвучен на сутки") {
		t.Fatalf("expected mute notice, got %q", texts[len(texts)-1])
	}
	if len(last.opts.Buttons) != 1 || !strings.HasPrefix(last.opts.Buttons[0].Data, unmuteCallback+":") {
		t.Fatalf("expected unmute button, got %#v", last.opts.Buttons)
	}

	// Same message from an administrator triggers nothing.
	admin := &api.User{ID: testAdminID, FirstName: "Admin"}
	before := len(env.ops.sentTexts())
	handleMessage(t, env, &api.Message{MessageID: 10, From: admin, Text: "казино"})
	if len(env.ops.restricted) != 1 {
		t.Fatalf("expected admin sender exempt from mute, got %v", env.ops.restricted)
	}
	if len(env.ops.sentTexts()) != before {
		t.Fatal("expected no reaction message for admin sender")
	}
}

func TestUnmuteCallbackRequiresAdmin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	payload := fmt.Sprintf("%s:%d:%d:%s", unmuteCallback, testChatID, 88, "Chatty")
	cqMessage := &api.Message{MessageID: 30, Chat: api.Chat{ID: testChatID}}

	stranger := &api.User{ID: 77}
	update := &api.Update{CallbackQuery: &api.CallbackQuery{ID: "cq1", Data: payload, Message: cqMessage}}
	if _, err := env.mod.Handle(context.Background(), update, &api.Chat{ID: testChatID}, stranger); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(env.ops.unrestricted) != 0 {
		t.Fatal("expected no unmute for non-admin presser")
	}
	if len(env.ops.answered) != 1 || !strings.Contains(env.ops.answered[0], msgAdminsOnly) {
		t.Fatalf("expected admins-only callback answer, got %v", env.ops.answered)
	}

	admin := &api.User{ID: testAdminID}
	update = &api.Update{CallbackQuery: &api.CallbackQuery{ID: "cq2", Data: payload, Message: cqMessage}}
	if _, err := env.mod.Handle(context.Background(), update, &api.Chat{ID: testChatID}, admin); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(env.ops.unrestricted) != 1 || env.ops.unrestricted[0] != 88 {
		t.Fatalf("expected unmute of user 88, got %v", env.ops.unrestricted)
	}
	if len(env.ops.edits) != 1 || !strings.Contains(env.ops.edits[0], "снова может писать сообщения") {
		t.Fatalf("expected mute notice edit, got %v", env.ops.edits)
	}
}

func TestMalformedUnmutePayloadDropped(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	admin := &api.User{ID: testAdminID}
	update := &api.Update{CallbackQuery: &api.CallbackQuery{ID: "cq1", Data: unmuteCallback + ":garbage"}}
	if _, err := env.mod.Handle(context.Background(), update, &api.Chat{ID: testChatID}, admin); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(env.ops.unrestricted) != 0 || len(env.ops.edits) != 0 {
		t.Fatal("expected malformed payload to be dropped")
	}
}

func TestFarewellSkippedForRecentlyBanned(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testAdminID)
	left := &api.User{ID: 88, FirstName: "Kicked"}
	env.roster.Remember(left.ID)

	handleMessage(t, env, &api.Message{MessageID: 11, From: left, LeftChatMember: left})
	if len(env.ops.sentTexts()) != 0 {
		t.Fatalf("expected no farewell for roster member, got %v", env.ops.sentTexts())
	}

	stranger := &api.User{ID: 99, FirstName: "Leaver"}
	handleMessage(t, env, &api.Message{MessageID: 12, From: stranger, LeftChatMember: stranger})
	texts := env.ops.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], msgFarewell) {
		t.Fatalf("expected farewell notice, got %v", texts)
	}
}
