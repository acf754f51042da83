package models

import (
	"encoding/json"
	"time"
)

type CaseType string

const (
	CaseDraftDispute   CaseType = "draft_dispute"
	CaseStreamIssue    CaseType = "stream_issue"
	CaseTimeDispute    CaseType = "time_dispute"
	CaseResultDispute  CaseType = "result_dispute"
	CaseRuleViolation  CaseType = "rule_violation"
	CaseTechnicalIssue CaseType = "technical_issue"
	CaseOther          CaseType = "other"
)

func (t CaseType) Valid() bool {
	switch t {
	case CaseDraftDispute, CaseStreamIssue, CaseTimeDispute,
		CaseResultDispute, CaseRuleViolation, CaseTechnicalIssue, CaseOther:
		return true
	}
	return false
}

type CaseStatus string

const (
	CaseOpened     CaseStatus = "opened"
	CaseAssigned   CaseStatus = "assigned"
	CaseInProgress CaseStatus = "in_progress"
	CaseResolved   CaseStatus = "resolved"
	CaseClosed     CaseStatus = "closed"
)

type ResolutionType string

const (
	ResolutionContinueMatch ResolutionType = "continue_match"
	ResolutionModifyResults ResolutionType = "modify_results"
	ResolutionReplayGame    ResolutionType = "replay_game"
	ResolutionAnnulMatch    ResolutionType = "annull_match"
	ResolutionWarningIssued ResolutionType = "warning_issued"
	ResolutionOther         ResolutionType = "other"
)

func (r ResolutionType) Valid() bool {
	switch r {
	case ResolutionContinueMatch, ResolutionModifyResults, ResolutionReplayGame,
		ResolutionAnnulMatch, ResolutionWarningIssued, ResolutionOther:
		return true
	}
	return false
}

// RefereeCase — спорная ситуация по матчу. Терминальна после
// resolved/closed; ссылается на матч, но не владеет им.
type RefereeCase struct {
	ID        int  `json:"id"`
	MatchID   int  `json:"match_id"`
	RefereeID *int `json:"referee_id,omitempty"`

	CaseType CaseType   `json:"case_type"`
	Status   CaseStatus `json:"status"`

	ReportedBy         int     `json:"reported_by"`
	ProblemDescription string  `json:"problem_description"`
	Evidence           *string `json:"evidence,omitempty"`
	EvidenceURL        *string `json:"evidence_url,omitempty"`

	RefereeNotes      *string         `json:"referee_notes,omitempty"`
	ResolutionType    *ResolutionType `json:"resolution_type,omitempty"`
	ResolutionDetails *string         `json:"resolution_details,omitempty"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`

	StageWhenReported MatchStage      `json:"stage_when_reported"`
	AdditionalData    json.RawMessage `json:"additional_data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *RefereeCase) IsResolved() bool {
	return c.Status == CaseResolved || c.Status == CaseClosed
}

// CanTransitionTo валидирует переход статуса: только вперёд, причём
// из opened/assigned/in_progress можно сразу в resolved.
func (c *RefereeCase) CanTransitionTo(next CaseStatus) bool {
	switch c.Status {
	case CaseOpened:
		return next == CaseAssigned || next == CaseInProgress || next == CaseResolved
	case CaseAssigned:
		return next == CaseInProgress || next == CaseResolved
	case CaseInProgress:
		return next == CaseResolved
	case CaseResolved:
		return next == CaseClosed
	}
	return false
}
