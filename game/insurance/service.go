// Package insurance decides which insured items make it back to the player
// after a raid and mails the survivors from the insuring trader.
package insurance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/mail"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/game/rng"
	"github.com/kasuganosora/raidsim/server/metrics"
	"github.com/kasuganosora/raidsim/server/plugin/hook"
	"github.com/kasuganosora/raidsim/server/resource"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrItemNotFound      = errors.New("insurance: item not in inventory")
	ErrTraderNotInsuring = errors.New("insurance: trader does not offer insurance")
)

// Locations whose insurance can be switched off in the location data.
const (
	LocationLabs      = "laboratory"
	LocationLabyrinth = "labyrinth"
)

// Dialogue keys of the trader message templates.
const (
	DialogueFound            = "insuranceFound"
	DialogueFailed           = "insuranceFailed"
	DialogueFailedLabs       = "insuranceFailedLabs"
	DialogueFailedLabyrinth  = "insuranceFailedLabyrinth"
	charismaSkill            = "Charisma"
	charismaPointsPerRouble  = 1.0 / 200000
	defaultReturnWindowHours = 24
)

// TraderData is the read-only trader and location data insurance needs.
type TraderData interface {
	TraderExists(traderID string) bool
	TraderDialogue(traderID, key string) []string
	TraderInsurance(traderID string) (resource.TraderInsurance, bool)
	LocationInsuranceEnabled(location string) bool
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// SkillGainer adds skill points to a profile the caller holds the lock on.
type SkillGainer interface {
	AddSkillPoints(p *profile.Profile, skillID string, points float64, useRate bool) float64
}

// Outcome summarises one processed package.
type Outcome struct {
	TraderID   string `json:"traderId"`
	Location   string `json:"location"`
	TemplateID string `json:"templateId"`
	Returned   int    `json:"returned"`
	Deleted    int    `json:"deleted"`
	Mailed     bool   `json:"mailed"`
}

// Service adjudicates insurance packages.
type Service struct {
	profiles *profile.Manager
	catalog  item.Catalog
	data     TraderData
	mailer   Mailer
	skills   SkillGainer
	cfg      config.InsuranceConfig
	hooks    *hook.Center
	rng      rng.Rand
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

// NewService creates a new insurance Service.
func NewService(profiles *profile.Manager, catalog item.Catalog, data TraderData, mailer Mailer,
	skills SkillGainer, cfg config.InsuranceConfig, logger *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		catalog:  catalog,
		data:     data,
		mailer:   mailer,
		skills:   skills,
		cfg:      cfg,
		rng:      rng.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// SetHooks makes the service trigger InsuranceReturned on hc for every
// processed package.
func (s *Service) SetHooks(hc *hook.Center) { s.hooks = hc }

// errMailUndelivered marks a package transition rolled back because its
// mail could not be stored.
var errMailUndelivered = errors.New("insurance: mail not delivered")

// ProcessInsuranceReturn handles every package of the profile whose return
// time has passed. Each package is removed in the same transaction that
// stores its mail, so a failed send or save keeps the package for the next
// call and never leaves a mail behind.
func (s *Service) ProcessInsuranceReturn(ctx context.Context, profileID string) ([]Outcome, error) {
	snapshot, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	var due []profile.InsurancePackage
	for _, pkg := range snapshot.InsuranceList {
		if now >= pkg.ScheduledTime {
			due = append(due, pkg)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	s.logger.Debug("processing insurance packages",
		zap.String("profile_id", profileID), zap.Int("due", len(due)), zap.Int("total", len(snapshot.InsuranceList)))

	var (
		outcomes []Outcome
		errs     []error
	)
	for _, pkg := range due {
		out, ok, err := s.processPackage(ctx, profileID, pkg)
		switch {
		case errors.Is(err, errMailUndelivered):
			s.logger.Error("insurance mail failed, package kept",
				zap.String("profile_id", profileID), zap.String("trader_id", pkg.TraderID), zap.Error(err))
			metrics.InsurancePackages.WithLabelValues(metrics.OutcomeFailed).Inc()
		case err != nil:
			errs = append(errs, err)
			continue
		case !ok:
			continue
		default:
			out.Mailed = true
			metrics.InsuranceItemsDeleted.Add(float64(out.Deleted))
			if out.Returned > 0 {
				metrics.InsurancePackages.WithLabelValues(metrics.OutcomeReturned).Inc()
			} else {
				metrics.InsurancePackages.WithLabelValues(metrics.OutcomeLost).Inc()
			}
			s.logger.Debug("insurance package processed",
				zap.String("profile_id", profileID), zap.String("trader_id", pkg.TraderID),
				zap.Int("returned", out.Returned), zap.Int("deleted", out.Deleted))
		}
		outcomes = append(outcomes, out)
	}
	for _, out := range outcomes {
		_, _ = s.hooks.Trigger(ctx, hook.InsuranceReturned, hook.InsuranceEvent{
			ProfileID:  profileID,
			TraderID:   out.TraderID,
			Location:   out.Location,
			TemplateID: out.TemplateID,
			Returned:   out.Returned,
			Deleted:    out.Deleted,
			Mailed:     out.Mailed,
		})
	}
	return outcomes, errors.Join(errs...)
}

// processPackage adjudicates pkg and commits its removal together with the
// mail. ok is false when another call already handled the package.
func (s *Service) processPackage(ctx context.Context, profileID string, pkg profile.InsurancePackage) (out Outcome, ok bool, err error) {
	err = s.profiles.UpdateCommit(ctx, profileID, func(p *profile.Profile) ([]profile.Commit, error) {
		if !p.RemoveInsurancePackage(pkg) {
			return nil, nil
		}
		ok = true
		msg := s.adjudicate(p.ID, pkg, &out)
		return []profile.Commit{func(ctx context.Context) error {
			if err := s.mailer.Send(ctx, msg); err != nil {
				return fmt.Errorf("%w: %w", errMailUndelivered, err)
			}
			return nil
		}}, nil
	})
	return out, ok, err
}

// adjudicate rolls which items survive and builds the package mail.
func (s *Service) adjudicate(profileID string, pkg profile.InsurancePackage, out *Outcome) mail.Message {
	rootID := s.newID()
	items := item.AdoptOrphans(pkg.Items, rootID)
	before := len(items)

	if s.cfg.SimulateItemsBeingTaken {
		toDelete := s.findItemsToDelete(rootID, pkg.TraderID, items)
		kept := items[:0]
		for _, it := range items {
			if _, gone := toDelete[it.ID]; !gone {
				kept = append(kept, it)
			}
		}
		// removing an attachment can orphan what was mounted on it
		items = item.AdoptOrphans(kept, rootID)
	}
	deleted := before - len(items)

	templateID := pkg.MessageTemplateID
	switch {
	case s.zoneInsuranceDisabled(pkg, LocationLabs):
		templateID = s.failedTemplate(pkg.TraderID, DialogueFailedLabs)
		deleted, items = before, nil
	case s.zoneInsuranceDisabled(pkg, LocationLabyrinth):
		templateID = s.failedTemplate(pkg.TraderID, DialogueFailedLabyrinth)
		deleted, items = before, nil
	case len(items) == 0:
		templateID = s.failedTemplate(pkg.TraderID, "")
	}

	msgType := mail.SystemMessage
	if pkg.MessageType != 0 {
		msgType = mail.MessageType(pkg.MessageType)
	}
	*out = Outcome{
		TraderID:   pkg.TraderID,
		Location:   pkg.SystemData.Location,
		TemplateID: templateID,
		Returned:   len(items),
		Deleted:    deleted,
	}
	return mail.Message{
		ProfileID:      profileID,
		TraderID:       pkg.TraderID,
		Type:           msgType,
		TemplateID:     templateID,
		Items:          items,
		MaxStorageTime: pkg.MaxStorageTime,
		SystemData:     pkg.SystemData,
	}
}

func (s *Service) zoneInsuranceDisabled(pkg profile.InsurancePackage, location string) bool {
	return strings.EqualFold(pkg.SystemData.Location, location) && !s.data.LocationInsuranceEnabled(location)
}

// failedTemplate picks a template from the zone specific dialogue key, or
// from the generic failed key when the trader has none for the zone.
func (s *Service) failedTemplate(traderID, zoneKey string) string {
	if zoneKey != "" {
		if ids := s.data.TraderDialogue(traderID, zoneKey); len(ids) > 0 {
			return rng.Pick(s.rng, ids)
		}
	}
	return rng.Pick(s.rng, s.data.TraderDialogue(traderID, DialogueFailed))
}

// ProcessAllDueInsurance runs ProcessInsuranceReturn for every stored
// profile, cfg.SweepWorkers at a time. Per-profile failures are logged and
// do not stop the sweep.
func (s *Service) ProcessAllDueInsurance(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.InsuranceSweepDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := s.profiles.IDs(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	workers := s.cfg.SweepWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := s.ProcessInsuranceReturn(gctx, id); err != nil {
				s.logger.Error("insurance sweep: profile failed", zap.String("profile_id", id), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}
