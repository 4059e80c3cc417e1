package prompts

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// defaultScoringTemplate asks for free-form feedback followed by the rating
// line the response parser expects.
const defaultScoringTemplate = `You are an experienced interview coach evaluating a candidate's spoken answer.

Interview question:
{{question}}

Candidate's transcribed answer:
{{transcript}}

Automated delivery analysis:
{{delivery}}

Give concise, actionable feedback on the content of the answer: strengths,
weaknesses, and one concrete improvement. Then end your response with a line
containing exactly "Rating:" followed on the next line by a score in the form
X/5, where X is a number between 0 and 5.`

type promptFile struct {
	ScoringPrompt string `yaml:"scoring_prompt"`
}

// Builder renders scoring prompts. The template can be overridden from a
// yaml file so prompt wording can change without a rebuild.
type Builder struct {
	template string
}

func NewBuilder(path string, logger *zap.Logger) *Builder {
	b := &Builder{template: defaultScoringTemplate}
	if path == "" {
		return b
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read prompt file, using default template", zap.String("path", path), zap.Error(err))
		return b
	}

	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		logger.Warn("Failed to parse prompt file, using default template", zap.String("path", path), zap.Error(err))
		return b
	}
	if strings.TrimSpace(pf.ScoringPrompt) != "" {
		b.template = pf.ScoringPrompt
	}
	return b
}

// BuildScoringPrompt interpolates the question, transcript, and delivery
// summary into the scoring template.
func (b *Builder) BuildScoringPrompt(question, transcript, deliverySummary string) string {
	replacer := strings.NewReplacer(
		"{{question}}", question,
		"{{transcript}}", transcript,
		"{{delivery}}", deliverySummary,
	)
	return replacer.Replace(b.template)
}
