package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
// Сгруппированы по исходу: валидация и неверный ввод, нарушенные
// предусловия этапов, права, конфликты, сезонная политика и нарушения
// целостности. Повторяется автоматически только конфликт.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации (ввод отклонён до любых изменений состояния)
	ErrValidationFailed     = errors.New("validation failed")
	ErrInvalidMatchFormat   = errors.New("invalid match format")
	ErrInvalidCaseType      = errors.New("invalid referee case type")
	ErrInvalidResolution    = errors.New("invalid resolution type")
	ErrSamePlayer           = errors.New("a player cannot duel themselves")
	ErrNegativeTime         = errors.New("completion time must be non-negative")
	ErrNegativeRestarts     = errors.New("restart count must be non-negative")
	ErrDraftLinkRequired    = errors.New("draft link is required")
	ErrPasswordTooShort     = errors.New("password is too short")

	// Предусловия этапов (state mismatch; состояние не меняется)
	ErrStageMismatch         = errors.New("operation does not match the current match stage")
	ErrPreconditionNotMet    = errors.New("stage preconditions are not met")
	ErrMatchTerminal         = errors.New("match is already completed or cancelled")
	ErrNotAParticipant       = errors.New("player is not a participant of this match")
	ErrResultNotConfirmed    = errors.New("game result is not confirmed by both players")
	ErrCaseTransitionInvalid = errors.New("invalid referee case status transition")
	ErrCaseAlreadyResolved   = errors.New("referee case is already resolved")

	// Права
	ErrPermissionDenied       = errors.New("actor lacks the required capability")
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrRefereeInactive        = errors.New("referee account is inactive")

	// Конфликты (вызывающий может повторить)
	ErrConflict            = errors.New("concurrent modification detected, retry the operation")
	ErrAlreadyInMatch      = errors.New("player is already in an active match")
	ErrResultAlreadyExists = errors.New("a different result is already recorded for this game")
	ErrRefereeEmailTaken   = errors.New("referee email is already in use")

	// Сезонная политика
	ErrSeasonBlocked      = errors.New("season does not allow new matches")
	ErrSeasonRatingLocked = errors.New("season rating calculation is locked")
	ErrNoActiveSeason     = errors.New("no active season")

	// Целостность (фатально; транзакция не фиксируется)
	ErrIntegrity = errors.New("integrity violation")

	// Ошибки, специфичные для сущностей
	ErrPlayerNotFound   = errors.New("player not found")
	ErrMatchNotFound    = errors.New("match not found")
	ErrSeasonNotFound   = errors.New("season not found")
	ErrRatingNotFound   = errors.New("rating not found")
	ErrRefereeNotFound  = errors.New("referee not found")
	ErrCaseNotFound     = errors.New("referee case not found")
	ErrSettingsNotFound = errors.New("penalty settings not found")
)
