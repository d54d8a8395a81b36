package service

import (
	"fmt"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/utils"
)

// CommissionPlan supplies the split rule for each order kind. Exactly one plan is
// active per deployment and plans never share tables.
type CommissionPlan interface {
	Name() string
	Rule(kind domain.OrderKind) utils.SplitRule
}

type tablePlan struct {
	name       string
	joining    utils.SplitRule
	repurchase utils.SplitRule
}

func (p *tablePlan) Name() string { return p.name }

func (p *tablePlan) Rule(kind domain.OrderKind) utils.SplitRule {
	if kind == domain.OrderKindJoining {
		return p.joining
	}
	return p.repurchase
}

// NewCommissionPlan builds the plan selected by cfg.Model.
//
// The matrix plan splits the joining bucket between sponsors and the buyer's deferred
// self income and gives the whole repurchase bucket to sponsors. The pool plan also
// carves a turnover pool share from the bucket.
func NewCommissionPlan(cfg config.CommissionConfig) (CommissionPlan, error) {
	switch cfg.Model {
	case "":
		cfg.Model = config.CommissionModelMatrix
	case config.CommissionModelMatrix, config.CommissionModelPool:
	default:
		return nil, fmt.Errorf("unknown commission model %q", cfg.Model)
	}
	return newTablePlan(cfg.Model, cfg.Active()), nil
}

func newTablePlan(name string, pc config.PlanConfig) *tablePlan {
	return &tablePlan{name: name, joining: toRule(pc.Joining), repurchase: toRule(pc.Repurchase)}
}

func toRule(sc config.SplitConfig) utils.SplitRule {
	levels := make([]int64, len(sc.LevelBps))
	copy(levels, sc.LevelBps)
	return utils.SplitRule{
		CompanyBps:  sc.CompanyBps,
		SponsorsBps: sc.SponsorsBps,
		SelfBps:     sc.SelfBps,
		PoolBps:     sc.PoolBps,
		LevelBps:    levels,
	}
}
