package roles

import "github.com/vitrine-shop/vitrine/internal/rbac"

// Service handles role catalogue logic.
type Service struct{}

// NewService builds Service instance.
func NewService() *Service {
	return &Service{}
}

// Catalogue returns the fixed roles, highest rank first, flagged against the
// rank of actor.
func (s *Service) Catalogue(actor rbac.Role) []Entry {
	all := rbac.AllRoles()
	out := make([]Entry, 0, len(all))
	for _, role := range all {
		out = append(out, Entry{
			Name:       role,
			Rank:       role.Rank(),
			Assignable: actor.Valid() && role.Rank() <= actor.Rank(),
		})
	}
	return out
}
