package composer

import "fmt"

// Role names a reasoning call.
type Role string

const (
	RoleVisionary Role = "visionary"
	RoleSkeptic   Role = "skeptic"
	RoleJudge     Role = "judge"
)

const (
	DefaultVisionaryModel = "gemini-2.5-flash"
	DefaultSkepticModel   = "llama-3.3-70b-versatile"
	DefaultJudgeModel     = "gemini-2.5-flash"
)

// Persona is one fixed viewpoint: which model runs it and its system prompt.
type Persona struct {
	Role   Role
	Model  string
	System string
	// Image reports whether the persona receives the request image.
	Image bool
}

// Personas is the full cast for one synthesis.
type Personas struct {
	Visionary Persona
	Skeptic   Persona
	Judge     Persona
}

// All returns the cast in pipeline order.
func (p Personas) All() []Persona {
	return []Persona{p.Visionary, p.Skeptic, p.Judge}
}

// NewPersonas builds the cast. Empty model names take the defaults.
func NewPersonas(visionaryModel, skepticModel, judgeModel string) Personas {
	return Personas{
		Visionary: Persona{
			Role:   RoleVisionary,
			Model:  orDefault(visionaryModel, DefaultVisionaryModel),
			System: "You are The Visionary (Optimistic).",
			Image:  true,
		},
		Skeptic: Persona{
			Role:   RoleSkeptic,
			Model:  orDefault(skepticModel, DefaultSkepticModel),
			System: "You are The Skeptic (Critical).",
		},
		Judge: Persona{
			Role:  RoleJudge,
			Model: orDefault(judgeModel, DefaultJudgeModel),
		},
	}
}

// JudgePrompt is the judge's system prompt. It carries the query and both
// persona outputs verbatim; the judge's user turn is empty.
func JudgePrompt(prompt, visionary, skeptic string) string {
	return fmt.Sprintf("You are Juskvi (The Judge). Synthesize a decision.\nQuery: %s\nVis: %s\nSkep: %s",
		prompt, visionary, skeptic)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
