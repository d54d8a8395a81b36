package service

import (
	"context"
	"errors"
	"time"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
	"matrix-commission-backend/internal/utils"
)

type teamService struct {
	uow repository.UnitOfWork
	cfg config.TeamConfig
	now func() time.Time
}

func NewTeamService(uow repository.UnitOfWork, cfg config.TeamConfig) TeamService {
	return &teamService{uow: uow, cfg: cfg, now: time.Now}
}

func (s *teamService) OnJoiningCompleted(ctx context.Context, userID int64) (*domain.TeamProgress, error) {
	var progress *domain.TeamProgress
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		progress, err = s.OnJoiningWithin(ctx, repos, userID)
		return err
	})
	return progress, err
}

// OnJoiningWithin adds a newly joined user to the direct sponsor's forming team.
// It returns nil when nothing changed: no sponsor, a system sponsor, or a user
// that already belongs to a team.
func (s *teamService) OnJoiningWithin(ctx context.Context, repos repository.Repositories, userID int64) (*domain.TeamProgress, error) {
	user, err := repos.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.SponsorID == nil {
		return nil, nil
	}
	sponsor, err := repos.Users().GetByID(ctx, *user.SponsorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Sponsor record missing, no team update", "user_id", userID, "sponsor_id", *user.SponsorID)
			return nil, nil
		}
		return nil, err
	}
	if sponsor.IsSystem {
		return nil, nil
	}

	member, err := repos.Teams().IsMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, nil
	}

	team, err := repos.Teams().GetFormingForUpdate(ctx, sponsor.ID)
	if errors.Is(err, domain.ErrNotFound) {
		team, err = repos.Teams().Create(ctx, sponsor.ID)
	}
	if err != nil {
		return nil, err
	}

	members, err := repos.Teams().AddMember(ctx, team.ID, userID)
	if err != nil {
		return nil, err
	}

	progress := &domain.TeamProgress{
		LeaderID:   sponsor.ID,
		TeamID:     team.ID,
		Members:    members,
		TotalTeams: sponsor.TotalTeams,
		Level:      sponsor.Level,
	}
	if members < s.teamSize() {
		return progress, nil
	}

	if err := repos.Teams().Complete(ctx, team.ID, s.now()); err != nil {
		return nil, err
	}
	total, err := repos.Users().IncrementTeams(ctx, sponsor.ID)
	if err != nil {
		return nil, err
	}
	level, err := repos.Users().RaiseLevel(ctx, sponsor.ID, utils.LevelForTeams(total, s.cfg.LevelThresholds))
	if err != nil {
		return nil, err
	}

	progress.Completed = true
	progress.TotalTeams = total
	progress.Level = level
	logger.Info("Team completed", "leader_id", sponsor.ID, "team_id", team.ID, "total_teams", total, "level", level)
	return progress, nil
}

func (s *teamService) teamSize() int {
	if s.cfg.Size > 0 {
		return s.cfg.Size
	}
	return domain.MatrixFanout
}
