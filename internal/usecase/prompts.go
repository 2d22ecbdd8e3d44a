package usecase

import _ "embed"

// Prompt templates travel with the binary; stage executors append the
// niche-specific payload after the template text.

//go:embed prompts/outline.txt
var outlinePrompt string

//go:embed prompts/section.txt
var sectionPrompt string

//go:embed prompts/enrich.txt
var enrichPrompt string

//go:embed prompts/polish.txt
var polishPrompt string

const (
	outlineSystem = "You are an expert content strategist."
	sectionSystem = "You are a helpful writer producing affiliate content."
	enrichSystem  = "You are a meticulous researcher annotating an article."
	polishSystem  = "You are an editor improving AI-generated prose."
)
