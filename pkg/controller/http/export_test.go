package http

// VerifyVoiceAISignature is exported for testing
var VerifyVoiceAISignature = verifyVoiceAISignature
