package models

import "testing"

func TestCaseTransitionMatrix(t *testing.T) {
	tests := []struct {
		from    CaseStatus
		to      CaseStatus
		allowed bool
	}{
		{CaseOpened, CaseAssigned, true},
		{CaseOpened, CaseInProgress, true},
		{CaseOpened, CaseResolved, true},
		{CaseOpened, CaseClosed, false},
		{CaseAssigned, CaseInProgress, true},
		{CaseAssigned, CaseResolved, true},
		{CaseAssigned, CaseOpened, false},
		{CaseInProgress, CaseResolved, true},
		{CaseInProgress, CaseAssigned, false},
		{CaseResolved, CaseClosed, true},
		{CaseResolved, CaseInProgress, false},
		{CaseClosed, CaseResolved, false},
		{CaseClosed, CaseOpened, false},
	}
	for _, tt := range tests {
		c := &RefereeCase{Status: tt.from}
		if got := c.CanTransitionTo(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestCaseIsResolved(t *testing.T) {
	for _, status := range []CaseStatus{CaseOpened, CaseAssigned, CaseInProgress} {
		if (&RefereeCase{Status: status}).IsResolved() {
			t.Fatalf("%s must not count as resolved", status)
		}
	}
	for _, status := range []CaseStatus{CaseResolved, CaseClosed} {
		if !(&RefereeCase{Status: status}).IsResolved() {
			t.Fatalf("%s must count as resolved", status)
		}
	}
}

func TestRefereeCapabilities(t *testing.T) {
	full := &Referee{
		IsActive:           true,
		CanAnnulMatches:    true,
		CanModifyResults:   true,
		CanResolveDisputes: true,
	}
	for _, res := range []ResolutionType{
		ResolutionContinueMatch, ResolutionModifyResults, ResolutionReplayGame,
		ResolutionAnnulMatch, ResolutionWarningIssued, ResolutionOther,
	} {
		if !full.CanApply(res) {
			t.Fatalf("full capabilities must allow %s", res)
		}
	}

	inactive := *full
	inactive.IsActive = false
	if inactive.CanApply(ResolutionContinueMatch) {
		t.Fatal("inactive referee must hold no capabilities")
	}

	limited := &Referee{IsActive: true, CanResolveDisputes: true}
	if limited.CanApply(ResolutionAnnulMatch) {
		t.Fatal("annulment requires can_annul_matches")
	}
	if limited.CanApply(ResolutionModifyResults) {
		t.Fatal("result modification requires can_modify_results")
	}
	if limited.CanApply(ResolutionReplayGame) {
		t.Fatal("replay requires can_modify_results")
	}
	if !limited.CanApply(ResolutionWarningIssued) {
		t.Fatal("warnings require only can_resolve_disputes")
	}
}

func TestResolutionTypeValid(t *testing.T) {
	if !ResolutionAnnulMatch.Valid() {
		t.Fatal("annull_match must be valid")
	}
	if ResolutionType("declare_winner").Valid() {
		t.Fatal("unknown resolution accepted")
	}
	if !CaseResultDispute.Valid() {
		t.Fatal("result_dispute must be valid")
	}
	if CaseType("salt").Valid() {
		t.Fatal("unknown case type accepted")
	}
}
