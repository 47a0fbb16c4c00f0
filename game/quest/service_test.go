package quest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testNow = 100000

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

type fakeRewards struct {
	calls []string
}

func (f *fakeRewards) ApplyReward(p *profile.Profile, q *Quest, state profile.QuestState) []item.Item {
	f.calls = append(f.calls, q.ID+":"+state.String())
	var out []item.Item
	for _, r := range q.Rewards.For(state) {
		out = append(out, item.Clone(r.Items)...)
	}
	return out
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) ofType(t mail.MessageType) []mail.Message {
	var out []mail.Message
	for _, m := range f.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// flakyStore fails the next fails calls to Save.
type flakyStore struct {
	*profile.MemoryStore
	fails int
}

func (s *flakyStore) Save(ctx context.Context, p *profile.Profile) error {
	if s.fails > 0 {
		s.fails--
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, p)
}

func questCond(target string, wait int64, states ...profile.QuestState) Condition {
	return Condition{ID: "c-" + target, Kind: KindQuest, Target: Single(target), Status: states, AvailableAfter: wait}
}

// testQuests builds a small quest line:
//
//	q1: no conditions
//	q2: needs q1 success
//	q3: needs q1 success and a one hour wait
//	q4: failed by completing q1
//	q5: visible once q1 is started
//	q6: needs q4 failed
//	q7: needs level 10
func testQuests() map[string]*Quest {
	reward := item.Item{ID: "r1", Template: "tpl-roubles"}
	return map[string]*Quest{
		"q1": {
			ID: "q1", TraderID: "t1", Description: "q1 description",
			SuccessMessageText: "q1 success",
			Rewards: Rewards{Success: []Reward{{ID: "rw1", Kind: RewardItem, Items: []item.Item{reward}}}},
		},
		"q2": {ID: "q2", TraderID: "t1", Conditions: Conditions{
			AvailableForStart: []Condition{questCond("q1", 0, profile.QuestSuccess)}}},
		"q3": {ID: "q3", TraderID: "t1", Conditions: Conditions{
			AvailableForStart: []Condition{questCond("q1", 3600, profile.QuestSuccess)}}},
		"q4": {ID: "q4", TraderID: "t1", FailMessageText: "q4 failed", Conditions: Conditions{
			Fail: []Condition{questCond("q1", 0, profile.QuestSuccess)}}},
		"q5": {ID: "q5", TraderID: "t1", Conditions: Conditions{
			AvailableForStart: []Condition{
				questCond("q1", 0, profile.QuestStarted),
				{ID: "lvl", Kind: KindLevel, CompareMethod: ">=", Value: 1},
				{ID: "loy", Kind: KindTraderLoyalty, CompareMethod: ">=", Value: 1, Target: Single("t1")},
			}}},
		"q6": {ID: "q6", TraderID: "t1", Conditions: Conditions{
			AvailableForStart: []Condition{questCond("q4", 0, profile.QuestFail)}}},
		"q7": {ID: "q7", TraderID: "t1", Conditions: Conditions{
			AvailableForStart: []Condition{{ID: "lvl", Kind: KindLevel, CompareMethod: ">=", Value: 10}}}},
	}
}

type harness struct {
	svc     *Service
	mgr     *profile.Manager
	store   *flakyStore
	rewards *fakeRewards
	mailer  *fakeMailer
}

func newHarness(t *testing.T, quests map[string]*Quest, cfg config.QuestConfig) *harness {
	t.Helper()
	if cfg.MailRedeemTimeHours == nil {
		cfg.MailRedeemTimeHours = map[string]int{"default": 48}
	}
	store := &flakyStore{MemoryStore: profile.NewMemoryStore()}
	mgr := profile.NewManager(store, profile.NewLocker(nil, config.ProfileConfig{}, nopLogger()), nopLogger())
	h := &harness{mgr: mgr, store: store, rewards: &fakeRewards{}, mailer: &fakeMailer{}}
	h.svc = NewService(mgr, NewDefinitions(quests), h.rewards, h.mailer, cfg, nopLogger())
	h.svc.now = func() time.Time { return time.Unix(testNow, 0) }
	return h
}

func (h *harness) create(t *testing.T, setup func(p *profile.Profile)) {
	t.Helper()
	p := profile.New("p1", "Hero", profile.SideUsec, "standard", []string{"t1"}, 0)
	if setup != nil {
		setup(p)
	}
	require.NoError(t, h.mgr.Create(context.Background(), p))
}

func (h *harness) profile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := h.mgr.Get(context.Background(), "p1")
	require.NoError(t, err)
	return p
}

func ids(qs []*Quest) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestMailRedeemHours(t *testing.T) {
	h := newHarness(t, nil, config.QuestConfig{MailRedeemTimeHours: map[string]int{"default": 48, "edge_of_darkness": 72}})
	assert.Equal(t, 72, h.svc.MailRedeemHours("Edge_Of_Darkness"))
	assert.Equal(t, 48, h.svc.MailRedeemHours("standard"))
}

func TestQuestIsForOtherSide(t *testing.T) {
	h := newHarness(t, nil, config.QuestConfig{BearOnlyQuests: []string{"bear"}, UsecOnlyQuests: []string{"usec"}})
	usec := profile.New("u", "U", profile.SideUsec, "standard", nil, 0)
	bear := profile.New("b", "B", profile.SideBear, "standard", nil, 0)

	assert.True(t, h.svc.QuestIsForOtherSide(usec, "bear"))
	assert.False(t, h.svc.QuestIsForOtherSide(usec, "usec"))
	assert.True(t, h.svc.QuestIsForOtherSide(bear, "usec"))
	assert.False(t, h.svc.QuestIsForOtherSide(bear, "other"))
}

func TestShowEventQuest(t *testing.T) {
	h := newHarness(t, nil, config.QuestConfig{
		EventQuests:  map[string][]string{"christmas": {"xmas"}, "halloween": {"spooky"}, "none": {"plain"}},
		ActiveEvents: []string{"Christmas"},
	})
	assert.True(t, h.svc.ShowEventQuest("xmas"))
	assert.False(t, h.svc.ShowEventQuest("spooky"))
	assert.False(t, h.svc.ShowEventQuest("plain"))
	assert.True(t, h.svc.ShowEventQuest("regular"))

	h.svc.cfg.ShowNonSeasonalEventQuests = true
	assert.True(t, h.svc.ShowEventQuest("plain"))
}

func TestHiddenForGameVersion(t *testing.T) {
	h := newHarness(t, nil, config.QuestConfig{
		ProfileBlacklist: map[string][]string{"tournament": {"q1"}},
		ProfileWhitelist: map[string][]string{"unheard": {"unheard_edition"}},
	})
	standard := profile.New("s", "S", profile.SideUsec, "standard", nil, 0)
	tournament := profile.New("t", "T", profile.SideUsec, "tournament", nil, 0)
	unheard := profile.New("u", "U", profile.SideUsec, "unheard_edition", nil, 0)

	assert.False(t, h.svc.HiddenForGameVersion(standard, "q1"))
	assert.True(t, h.svc.HiddenForGameVersion(tournament, "q1"))
	assert.True(t, h.svc.HiddenForGameVersion(standard, "unheard"))
	assert.False(t, h.svc.HiddenForGameVersion(unheard, "unheard"))
}
