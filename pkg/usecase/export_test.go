package usecase

// IsGoodbye is exported for testing
var IsGoodbye = isGoodbye

// ClampImportance is exported for testing
var ClampImportance = clampImportance

// BuildReplySystemPrompt is exported for testing
var BuildReplySystemPrompt = buildReplySystemPrompt
