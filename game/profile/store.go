package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kasuganosora/raidsim/server/db"
	"github.com/kasuganosora/raidsim/server/model"
	"github.com/klauspost/compress/zstd"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProfileNotFound = errors.New("profile: not found")
	ErrNoBackup        = errors.New("profile: no backup")
)

// Store persists profile snapshots.
type Store interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	ListIDs(ctx context.Context) ([]string, error)
	SaveBackup(ctx context.Context, p *Profile, reason string) error
	LatestBackup(ctx context.Context, id string) (*Profile, error)
	// Transaction runs fn so that either all of its writes persist or none.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EncodeBackup returns p as zstd-compressed JSON.
func EncodeBackup(p *Profile) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBackup reverses EncodeBackup.
func DecodeBackup(data []byte) (*Profile, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	p := &Profile{}
	if err := json.NewDecoder(dec).Decode(p); err != nil {
		return nil, fmt.Errorf("backup decode: %w", err)
	}
	return p, nil
}

// GormStore keeps each profile as one JSON document row.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id string) (*Profile, error) {
	var rec model.ProfileRecord
	err := db.Conn(ctx, s.db).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	p := &Profile{}
	if err := json.Unmarshal(rec.Data, p); err != nil {
		return nil, fmt.Errorf("profile %s: decode: %w", id, err)
	}
	return p, nil
}

func (s *GormStore) Save(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	rec := &model.ProfileRecord{
		ID:          p.ID,
		Nickname:    p.Info.Nickname,
		Level:       p.Info.Level,
		Side:        p.Info.Side,
		GameVersion: p.Info.GameVersion,
		Data:        datatypes.JSON(data),
	}
	return db.Conn(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"nickname", "level", "side", "game_version", "data", "updated_at"}),
	}).Create(rec).Error
}

// Transaction runs fn in a database transaction. Mail and other rows written
// through db.Conn inside fn commit or roll back with the profile.
func (s *GormStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.Transaction(ctx, s.db, fn)
}

func (s *GormStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := db.Conn(ctx, s.db).Model(&model.ProfileRecord{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) SaveBackup(ctx context.Context, p *Profile, reason string) error {
	snap, err := EncodeBackup(p)
	if err != nil {
		return err
	}
	return db.Conn(ctx, s.db).Create(&model.ProfileBackup{
		ProfileID: p.ID,
		Reason:    reason,
		Snapshot:  snap,
	}).Error
}

func (s *GormStore) LatestBackup(ctx context.Context, id string) (*Profile, error) {
	var b model.ProfileBackup
	err := db.Conn(ctx, s.db).Where("profile_id = ?", id).Order("id DESC").First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoBackup
	}
	if err != nil {
		return nil, err
	}
	return DecodeBackup(b.Snapshot)
}

// MemoryStore is an in-process Store. Snapshots are stored encoded so callers
// never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string][]byte
	backups  map[string][][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string][]byte),
		backups:  make(map[string][][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	data, ok := s.profiles[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrProfileNotFound
	}
	p := &Profile{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

type memJournalKey struct{}

// memJournal holds the value each profile had before the transaction first
// saved it; nil means the profile did not exist.
type memJournal map[string][]byte

func (s *MemoryStore) Save(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if j, ok := ctx.Value(memJournalKey{}).(memJournal); ok {
		if _, seen := j[p.ID]; !seen {
			j[p.ID] = s.profiles[p.ID]
		}
	}
	s.profiles[p.ID] = data
	s.mu.Unlock()
	return nil
}

// Transaction undoes the profile saves made by fn when it fails.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memJournalKey{}).(memJournal); ok {
		return fn(ctx)
	}
	j := memJournal{}
	err := fn(context.WithValue(ctx, memJournalKey{}, j))
	if err == nil {
		return nil
	}
	s.mu.Lock()
	for id, prev := range j {
		if prev == nil {
			delete(s.profiles, id)
		} else {
			s.profiles[id] = prev
		}
	}
	s.mu.Unlock()
	return err
}

func (s *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SaveBackup(_ context.Context, p *Profile, _ string) error {
	snap, err := EncodeBackup(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.backups[p.ID] = append(s.backups[p.ID], snap)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LatestBackup(_ context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	list := s.backups[id]
	s.mu.RUnlock()
	if len(list) == 0 {
		return nil, ErrNoBackup
	}
	return DecodeBackup(list[len(list)-1])
}
