package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func newProfile() *Profile {
	return New("p1", "Hero", SideUsec, "standard", []string{"prapor"}, 1000)
}

func TestNew_Defaults(t *testing.T) {
	p := newProfile()
	assert.Equal(t, 1, p.Info.Level)
	assert.True(t, p.IsUsec())
	tr, ok := p.Trader("prapor")
	require.True(t, ok)
	assert.Equal(t, 1, tr.LoyaltyLevel)
	_, ok = p.Skill("Charisma")
	assert.True(t, ok)
}

func TestSetQuest_OneRowPerQuest(t *testing.T) {
	p := newProfile()
	p.SetQuest(QuestStatus{QID: "q1", Status: QuestStarted})
	p.SetQuest(QuestStatus{QID: "q1", Status: QuestSuccess})
	p.SetQuest(QuestStatus{QID: "q2", Status: QuestStarted})

	require.Len(t, p.Quests, 2)
	row, ok := p.Quest("q1")
	require.True(t, ok)
	assert.Equal(t, QuestSuccess, row.Status)
}

func TestRemoveInsurancePackage_MatchesTuple(t *testing.T) {
	p := newProfile()
	a := InsurancePackage{TraderID: "prapor", SystemData: InsuranceSystemData{Date: "d", Time: "t", Location: "bigmap"}}
	b := a
	b.SystemData.Location = "woods"
	p.InsuranceList = []InsurancePackage{a, b}

	assert.True(t, p.RemoveInsurancePackage(a))
	assert.False(t, p.RemoveInsurancePackage(a), "second removal finds nothing")
	require.Len(t, p.InsuranceList, 1)
	assert.Equal(t, "woods", p.InsuranceList[0].SystemData.Location)
}

func TestParseQuestState(t *testing.T) {
	s, ok := ParseQuestState("started")
	require.True(t, ok)
	assert.Equal(t, QuestStarted, s)
	s, ok = ParseQuestState("9")
	require.True(t, ok)
	assert.Equal(t, QuestAvailableAfter, s)
	_, ok = ParseQuestState("42")
	assert.False(t, ok)
}

func TestQuestStatusClone_Independent(t *testing.T) {
	q := QuestStatus{QID: "q1", StatusTimers: map[QuestState]int64{QuestStarted: 1}, CompletedConditions: []string{"c"}}
	c := q.Clone()
	c.StatusTimers[QuestSuccess] = 2
	c.CompletedConditions[0] = "x"
	assert.Len(t, q.StatusTimers, 1)
	assert.Equal(t, "c", q.CompletedConditions[0])
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   NewGormStore(testutil.SetupTestDB(t)),
	}
}

func TestStore_SaveGetList(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Get(ctx, "p1")
			assert.ErrorIs(t, err, ErrProfileNotFound)

			p := newProfile()
			p.Inventory.Items = []item.Item{{ID: "gun", Template: "ak", ParentID: p.Inventory.Stash, SlotID: "hideout"}}
			require.NoError(t, store.Save(ctx, p))

			p.Info.Level = 5
			require.NoError(t, store.Save(ctx, p), "save twice upserts")

			got, err := store.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, 5, got.Info.Level)
			assert.Equal(t, "ak", got.Inventory.Items[0].Template)

			ids, err := store.ListIDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"p1"}, ids)
		})
	}
}

func TestStore_Backups(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.LatestBackup(ctx, "p1")
			assert.ErrorIs(t, err, ErrNoBackup)

			p := newProfile()
			require.NoError(t, store.SaveBackup(ctx, p, "first"))
			p.Info.Level = 9
			require.NoError(t, store.SaveBackup(ctx, p, "second"))

			b, err := store.LatestBackup(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, 9, b.Info.Level)
		})
	}
}

func TestEncodeBackup_RoundTrip(t *testing.T) {
	p := newProfile()
	p.SetQuest(QuestStatus{QID: "q1", Status: QuestFail, StatusTimers: map[QuestState]int64{QuestFail: 7}})
	data, err := EncodeBackup(p)
	require.NoError(t, err)

	got, err := DecodeBackup(data)
	require.NoError(t, err)
	assert.Equal(t, p.Quests, got.Quests)

	_, err = DecodeBackup([]byte("not zstd"))
	assert.Error(t, err)
}

func TestLocker_SerialisesSameProfile(t *testing.T) {
	c, _ := testutil.SetupTestCache(t)
	for _, distributed := range []bool{false, true} {
		l := NewLocker(c, config.ProfileConfig{Distributed: distributed, LockRetry: time.Millisecond}, nopLogger())

		var mu sync.Mutex
		inside, maxInside := 0, 0
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(context.Background(), "p1")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxInside)
	}
}

func TestLocker_Timeout(t *testing.T) {
	l := NewLocker(nil, config.ProfileConfig{}, nopLogger())
	unlock, err := l.Lock(context.Background(), "p1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "p1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := l.Lock(context.Background(), "p2")
	require.NoError(t, err, "different profiles do not contend")
	other()
}

func TestLocker_DistributedHeldElsewhere(t *testing.T) {
	c, _ := testutil.SetupTestCache(t)
	ok, err := c.SetNX(context.Background(), "lock:profile:p1", "other-node", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	l := NewLocker(c, config.ProfileConfig{Distributed: true, LockRetry: time.Millisecond}, nopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "p1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	v, _ := c.Get(context.Background(), "lock:profile:p1")
	assert.Equal(t, "other-node", v, "foreign lock untouched")
}

func TestManager_UpdateSavesOrDiscards(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), NewLocker(nil, config.ProfileConfig{}, nopLogger()), nopLogger())
	require.NoError(t, m.Create(ctx, newProfile()))

	require.NoError(t, m.Update(ctx, "p1", func(p *Profile) error {
		p.Info.Level = 3
		return nil
	}))
	boom := errors.New("boom")
	err := m.Update(ctx, "p1", func(p *Profile) error {
		p.Info.Level = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Info.Level)

	assert.ErrorIs(t, m.Update(ctx, "nope", func(*Profile) error { return nil }), ErrProfileNotFound)
}

func TestManager_UpdateCommitRollsBack(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewManager(store, NewLocker(nil, config.ProfileConfig{}, nopLogger()), nopLogger())
			require.NoError(t, m.Create(ctx, newProfile()))

			var ran []string
			require.NoError(t, m.UpdateCommit(ctx, "p1", func(p *Profile) ([]Commit, error) {
				p.Info.Level = 3
				return []Commit{func(context.Context) error { ran = append(ran, "ok"); return nil }}, nil
			}))
			assert.Equal(t, []string{"ok"}, ran)

			boom := errors.New("boom")
			err := m.UpdateCommit(ctx, "p1", func(p *Profile) ([]Commit, error) {
				p.Info.Level = 99
				return []Commit{func(context.Context) error { return boom }}, nil
			})
			assert.ErrorIs(t, err, boom)

			got, err := m.Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, 3, got.Info.Level)
		})
	}
}

func TestGormStore_CommitWritesRollBackWithProfile(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(testutil.SetupTestDB(t))
	m := NewManager(store, NewLocker(nil, config.ProfileConfig{}, nopLogger()), nopLogger())
	require.NoError(t, m.Create(ctx, newProfile()))

	err := m.UpdateCommit(ctx, "p1", func(p *Profile) ([]Commit, error) {
		p.Info.Level = 50
		return []Commit{
			func(ctx context.Context) error { return store.SaveBackup(ctx, p, "inside") },
			func(context.Context) error { return errors.New("mail failed") },
		}, nil
	})
	require.Error(t, err)

	_, err = store.LatestBackup(ctx, "p1")
	assert.ErrorIs(t, err, ErrNoBackup)
	got, err := m.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Info.Level)
}

func TestMemoryStore_TransactionRestoresOnlyTouchedProfiles(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	other := New("p2", "Other", SideBear, "standard", nil, 0)
	require.NoError(t, store.Save(ctx, other))

	err := store.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Save(ctx, newProfile()))
		other.Info.Level = 8
		require.NoError(t, store.Save(context.Background(), other))
		return errors.New("rollback")
	})
	require.Error(t, err)

	_, err = store.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	got, err := store.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Info.Level, "writes outside the transaction are kept")
}

func TestManager_RestoreLatestBackup(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), NewLocker(nil, config.ProfileConfig{}, nopLogger()), nopLogger())
	p := newProfile()
	require.NoError(t, m.Create(ctx, p))
	require.NoError(t, m.Backup(ctx, p, "test"))

	require.NoError(t, m.Update(ctx, "p1", func(p *Profile) error {
		p.Info.Level = 40
		return nil
	}))
	require.NoError(t, m.RestoreLatestBackup(ctx, "p1"))

	got, _ := m.Get(ctx, "p1")
	assert.Equal(t, 1, got.Info.Level)
}
