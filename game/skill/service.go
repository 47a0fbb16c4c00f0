package skill

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/metrics"
	"go.uber.org/zap"
)

var (
	ErrSkillNotFound  = errors.New("skill: not found")
	ErrNegativePoints = errors.New("skill: negative points")
)

// Service applies skill experience to profiles.
type Service struct {
	profiles *profile.Manager
	cfg      config.SkillConfig
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a new skill Service.
func NewService(profiles *profile.Manager, cfg config.SkillConfig, logger *zap.Logger) *Service {
	return &Service{profiles: profiles, cfg: cfg, now: time.Now, logger: logger}
}

// AddSkillPoints adds visual points to the profile's skill. The caller must
// hold the profile lock. It returns the internal progress actually added.
func (s *Service) AddSkillPoints(p *profile.Profile, skillID string, points float64, useRate bool) float64 {
	if points < 0 {
		s.logger.Warn("attempt to increment skill with negative value",
			zap.String("skill", skillID), zap.Float64("points", points))
		return 0
	}
	sk, ok := p.Skill(skillID)
	if !ok {
		s.logger.Error("skill not found on profile",
			zap.String("profile_id", p.ID), zap.String("skill", skillID))
		return 0
	}
	now := s.now().Unix()
	if HasEliteLevel(p, skillID) {
		sk.LastAccess = now
		return 0
	}

	if useRate {
		points *= s.cfg.ProgressRate
	}
	if m, ok := s.cfg.GainMultipliers[strings.ToLower(skillID)]; ok {
		points *= m
	}

	before := sk.Progress
	adjusted := AdjustForLowLevel(sk.Progress, points)
	sk.Progress = math.Min(sk.Progress+adjusted, MaxProgress)
	sk.PointsEarnedDuringSession += adjusted
	sk.LastAccess = now
	metrics.SkillPointsAdded.WithLabelValues(sk.ID).Add(sk.Progress - before)

	s.logger.Debug("skill points added",
		zap.String("profile_id", p.ID), zap.String("skill", skillID),
		zap.Float64("added", adjusted), zap.Float64("progress", sk.Progress))
	return sk.Progress - before
}

// AddPoints locks the profile and adds points to one skill.
func (s *Service) AddPoints(ctx context.Context, profileID, skillID string, points float64) (profile.Skill, error) {
	if points < 0 {
		return profile.Skill{}, ErrNegativePoints
	}
	var out profile.Skill
	err := s.profiles.Update(ctx, profileID, func(p *profile.Profile) error {
		if _, ok := p.Skill(skillID); !ok {
			return ErrSkillNotFound
		}
		s.AddSkillPoints(p, skillID, points, true)
		sk, _ := p.Skill(skillID)
		out = *sk
		return nil
	})
	return out, err
}

// HasEliteLevel reports whether the skill is at maximum progress.
func HasEliteLevel(p *profile.Profile, skillID string) bool {
	sk, ok := p.Skill(skillID)
	return ok && sk.Progress >= MaxProgress
}
