package service

import (
	"context"
	"errors"
	"fmt"

	"matrix-commission-backend/internal/config"
	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
)

type placementService struct {
	uow repository.UnitOfWork
	cfg config.MatrixConfig
}

func NewPlacementService(uow repository.UnitOfWork, cfg config.MatrixConfig) PlacementService {
	return &placementService{uow: uow, cfg: cfg}
}

func (s *placementService) PlaceUser(ctx context.Context, userID int64, sponsorID *int64) (*domain.Placement, error) {
	var placement *domain.Placement
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		placement, err = s.PlaceWithin(ctx, repos, userID, sponsorID)
		return err
	})
	return placement, err
}

// PlaceWithin puts userID under the shallowest node with a free slot, searching
// breadth first from the sponsor's node, then writes the user's closure rows.
func (s *placementService) PlaceWithin(ctx context.Context, repos repository.Repositories, userID int64, sponsorID *int64) (*domain.Placement, error) {
	logger.EnterMethod("placementService.PlaceWithin", "user_id", userID, "sponsor_id", sponsorID)

	if userID <= 0 {
		return nil, domain.Validation("PlaceUser", "user id is required")
	}

	existing, err := repos.Matrix().GetNode(ctx, userID)
	if err == nil {
		return existingPlacement(existing), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	root, err := s.ensureRoot(ctx, repos, userID)
	if err != nil {
		return nil, err
	}
	if root.UserID == userID {
		// configured root user placed for the first time
		return existingPlacement(root), nil
	}

	start := root
	if sponsorID != nil && *sponsorID != root.UserID {
		sponsorNode, err := repos.Matrix().GetNode(ctx, *sponsorID)
		switch {
		case err == nil:
			start = sponsorNode
		case errors.Is(err, domain.ErrNotFound):
			logger.Warn("Sponsor has no matrix node, placing under global root",
				"user_id", userID, "sponsor_id", *sponsorID, "root_id", root.UserID)
		default:
			return nil, err
		}
	}

	parent, err := s.findParent(ctx, repos, start)
	if err != nil {
		return nil, err
	}

	position, err := s.claimPosition(ctx, repos, parent.UserID)
	if err != nil {
		return nil, err
	}

	node := &domain.MatrixNode{
		UserID:   userID,
		ParentID: &parent.UserID,
		Position: &position,
		Depth:    parent.Depth + 1,
	}
	if err := repos.Matrix().Insert(ctx, node); err != nil {
		return nil, err
	}

	if err := s.writeClosure(ctx, repos, node); err != nil {
		return nil, err
	}

	logger.Info("User placed in matrix",
		"user_id", userID, "parent_id", parent.UserID, "position", position, "depth", node.Depth)
	logger.ExitMethod("placementService.PlaceWithin", "user_id", userID)

	return &domain.Placement{
		UserID:   userID,
		ParentID: node.ParentID,
		Position: position,
		Depth:    node.Depth,
	}, nil
}

func existingPlacement(n *domain.MatrixNode) *domain.Placement {
	p := &domain.Placement{UserID: n.UserID, ParentID: n.ParentID, Depth: n.Depth, Existing: true}
	if n.Position != nil {
		p.Position = *n.Position
	}
	return p
}

// ensureRoot returns the global root, creating the system root on first use.
func (s *placementService) ensureRoot(ctx context.Context, repos repository.Repositories, placingUserID int64) (*domain.MatrixNode, error) {
	if s.cfg.RootUserID > 0 {
		root, err := repos.Matrix().GetNode(ctx, s.cfg.RootUserID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return root, err
		}
		if _, err := repos.Users().GetByID(ctx, s.cfg.RootUserID); err != nil {
			return nil, err
		}
		root = &domain.MatrixNode{UserID: s.cfg.RootUserID}
		if err := repos.Matrix().Insert(ctx, root); err != nil {
			return nil, err
		}
		logger.Info("Configured matrix root created", "root_id", root.UserID)
		return root, nil
	}

	root, err := repos.Matrix().GetRoot(ctx)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return root, err
	}

	// Serialise root creation. A concurrent creator makes us retry and find its root.
	ok, err := repos.Locks().TryAdvisoryXactLock(ctx, repository.LockMatrixRoot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Conflict("EnsureMatrixRoot", fmt.Errorf("root creation in progress"))
	}

	system, err := repos.Users().CreateSystemUser(ctx, domain.SystemRootReferralCode)
	if err != nil {
		return nil, err
	}
	root = &domain.MatrixNode{UserID: system.ID}
	if err := repos.Matrix().Insert(ctx, root); err != nil {
		return nil, err
	}
	logger.Info("System matrix root created", "root_id", root.UserID, "placing_user_id", placingUserID)
	return root, nil
}

// findParent walks the subtree level by level. Within a level, nodes are visited
// in the order their parents were visited and then by position, so the tree fills
// left to right.
func (s *placementService) findParent(ctx context.Context, repos repository.Repositories, start *domain.MatrixNode) (*domain.MatrixNode, error) {
	frontier := []domain.MatrixNode{*start}
	for len(frontier) > 0 {
		ids := make([]int64, len(frontier))
		for i, n := range frontier {
			ids[i] = n.UserID
		}

		children, err := repos.Matrix().ChildrenOf(ctx, ids)
		if err != nil {
			return nil, err
		}

		counts := make(map[int64]int, len(frontier))
		for _, c := range children {
			counts[*c.ParentID]++
		}
		for i := range frontier {
			n := counts[frontier[i].UserID]
			if n > domain.MatrixFanout {
				logger.Invariant("Matrix node over capacity", "node_id", frontier[i].UserID, "children", n)
				return nil, domain.Structural("PlaceUser", "node %d has %d children", frontier[i].UserID, n)
			}
			if n < domain.MatrixFanout {
				return &frontier[i], nil
			}
		}
		frontier = children
	}
	return nil, domain.Structural("PlaceUser", "no free slot below node %d", start.UserID)
}

// claimPosition locks the parent and re-checks its children. A parent that filled
// up since the search means the search was stale and the whole unit must retry.
func (s *placementService) claimPosition(ctx context.Context, repos repository.Repositories, parentID int64) (int, error) {
	if err := repos.Matrix().LockNode(ctx, parentID); err != nil {
		return 0, err
	}
	positions, err := repos.Matrix().ChildPositions(ctx, parentID)
	if err != nil {
		return 0, err
	}

	switch {
	case len(positions) > domain.MatrixFanout:
		logger.Invariant("Matrix node over capacity", "node_id", parentID, "children", len(positions))
		return 0, domain.Structural("PlaceUser", "node %d has %d children", parentID, len(positions))
	case len(positions) == domain.MatrixFanout:
		return 0, domain.Conflict("PlaceUser", fmt.Errorf("node %d filled during placement", parentID))
	}

	used := make(map[int]bool, len(positions))
	for _, p := range positions {
		used[p] = true
	}
	for p := 1; p <= domain.MatrixFanout; p++ {
		if !used[p] {
			return p, nil
		}
	}
	logger.Invariant("Matrix node has no free position", "node_id", parentID, "positions", positions)
	return 0, domain.Structural("PlaceUser", "node %d has %d children but no free position", parentID, len(positions))
}

// writeClosure walks parent pointers from the new node, one row per ancestor up to MaxDepth.
func (s *placementService) writeClosure(ctx context.Context, repos repository.Repositories, node *domain.MatrixNode) error {
	rows, err := s.ancestorChain(ctx, repos, node)
	if err != nil {
		return err
	}
	_, err = repos.Hierarchy().Insert(ctx, rows)
	return err
}

func (s *placementService) ancestorChain(ctx context.Context, repos repository.Repositories, node *domain.MatrixNode) ([]domain.HierarchyRow, error) {
	var rows []domain.HierarchyRow
	seen := map[int64]bool{node.UserID: true}
	parentID := node.ParentID
	for depth := 1; parentID != nil && depth <= s.cfg.MaxDepth; depth++ {
		if seen[*parentID] {
			logger.Invariant("Cycle in matrix parent pointers", "user_id", node.UserID, "at", *parentID)
			return nil, domain.Structural("PlaceUser", "cycle in parent pointers at node %d", *parentID)
		}
		seen[*parentID] = true
		rows = append(rows, domain.HierarchyRow{AncestorID: *parentID, DescendantID: node.UserID, Depth: depth})

		parent, err := repos.Matrix().GetNode(ctx, *parentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.Structural("PlaceUser", "parent %d of node %d is missing", *parentID, node.UserID)
			}
			return nil, err
		}
		parentID = parent.ParentID
	}
	return rows, nil
}

// RebuildHierarchy regenerates missing closure rows from the parent pointers.
func (s *placementService) RebuildHierarchy(ctx context.Context) (int64, error) {
	var inserted int64
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		nodes, err := repos.Matrix().ListAll(ctx)
		if err != nil {
			return err
		}
		parents := make(map[int64]*int64, len(nodes))
		for _, n := range nodes {
			parents[n.UserID] = n.ParentID
		}

		var rows []domain.HierarchyRow
		for _, n := range nodes {
			parentID := n.ParentID
			for depth := 1; parentID != nil && depth <= s.cfg.MaxDepth; depth++ {
				rows = append(rows, domain.HierarchyRow{AncestorID: *parentID, DescendantID: n.UserID, Depth: depth})
				next, ok := parents[*parentID]
				if !ok {
					return domain.Structural("RebuildHierarchy", "parent %d of node %d is missing", *parentID, n.UserID)
				}
				parentID = next
			}
		}

		inserted, err = repos.Hierarchy().Insert(ctx, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Info("Hierarchy rebuilt", "rows_inserted", inserted)
	return inserted, nil
}

// VerifyHierarchy compares stored closure rows with a fresh parent-pointer walk.
func (s *placementService) VerifyHierarchy(ctx context.Context, userID int64) error {
	repos := s.uow.Reader()
	node, err := repos.Matrix().GetNode(ctx, userID)
	if err != nil {
		return err
	}
	want, err := s.ancestorChain(ctx, repos, node)
	if err != nil {
		return err
	}
	got, err := repos.Hierarchy().Ancestors(ctx, userID, s.cfg.MaxDepth)
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return domain.Structural("VerifyHierarchy", "user %d has %d closure rows, expected %d", userID, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return domain.Structural("VerifyHierarchy", "user %d closure row %d is %+v, expected %+v", userID, i, got[i], want[i])
		}
	}
	return nil
}
