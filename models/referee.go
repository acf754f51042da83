package models

import "time"

// Referee — судья гильдии с набором флагов-полномочий и учётной записью
// для панели судейства.
type Referee struct {
	ID         int    `json:"id"`
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	GuildID    int64  `json:"guild_id"`

	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`

	IsActive           bool `json:"is_active"`
	CanAnnulMatches    bool `json:"can_annul_matches"`
	CanModifyResults   bool `json:"can_modify_results"`
	CanResolveDisputes bool `json:"can_resolve_disputes"`

	CasesResolved   int `json:"cases_resolved"`
	MatchesAnnulled int `json:"matches_annulled"`

	Notes *string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleReferee = "referee"
	RoleAdmin   = "admin"
)

// CanApply reports whether the referee holds the capability required by the
// given resolution type. Inactive referees hold no capabilities.
func (r *Referee) CanApply(res ResolutionType) bool {
	if !r.IsActive {
		return false
	}
	switch res {
	case ResolutionAnnulMatch:
		return r.CanAnnulMatches
	case ResolutionModifyResults, ResolutionReplayGame:
		return r.CanModifyResults
	case ResolutionContinueMatch, ResolutionWarningIssued, ResolutionOther:
		return r.CanResolveDisputes
	}
	return false
}
