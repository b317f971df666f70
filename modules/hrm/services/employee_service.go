package services

import (
	"context"
	"strings"

	"github.com/jacksonlee411/attendance-sync/modules/hrm/domain/aggregates/employee"
)

type EmployeeService struct {
	repo employee.Repository
}

func NewEmployeeService(repo employee.Repository) *EmployeeService {
	return &EmployeeService{repo: repo}
}

// GetByIDs resolves ids ordered by last name. Blank and duplicate ids are
// dropped before the lookup.
func (s *EmployeeService) GetByIDs(ctx context.Context, ids []string) ([]employee.Employee, error) {
	normalized := NormalizeIDs(ids)
	if len(normalized) == 0 {
		return nil, nil
	}
	return s.repo.GetByIDs(ctx, normalized)
}

func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
