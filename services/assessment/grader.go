package assessmentsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/progress"
)

const demoExplanation = "Demo mode: great result!"

var ErrEmptyResponse = errors.New("grader returned an empty response")

type (
	// Task describes what the student was asked to do.
	Task struct {
		Type         string  `json:"type" validate:"required,max=64"`
		Instructions string  `json:"instructions" validate:"max=2000"`
		TargetValue  float64 `json:"targetValue"`
	}

	// Grader scores a student's final lab state against a task.
	Grader interface {
		Grade(ctx context.Context, task Task, finalParams map[string]float64, timeTaken float64) (progress.AssessmentResult, error)
	}

	contentGenerator interface {
		GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	}

	// GeminiGrader asks a Gemini model for a grade with a fixed JSON schema.
	GeminiGrader struct {
		models contentGenerator
		model  string
	}

	// DemoGrader gives full marks. Used when no API key is configured.
	DemoGrader struct{}
)

var (
	_ Grader = (*GeminiGrader)(nil)
	_ Grader = DemoGrader{}
)

// New returns a GeminiGrader, or a DemoGrader when no API key is configured.
func New(ctx context.Context, conf *core.Config) (Grader, error) {
	if conf.Assessment.GeminiAPIKey == "" {
		return DemoGrader{}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  conf.Assessment.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}
	return &GeminiGrader{models: client.Models, model: conf.Assessment.Model}, nil
}

func (DemoGrader) Grade(context.Context, Task, map[string]float64, float64) (progress.AssessmentResult, error) {
	return progress.AssessmentResult{Score: 100, Explanation: demoExplanation, Confidence: 1}, nil
}

var gradeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"score":       {Type: genai.TypeNumber},
		"explanation": {Type: genai.TypeString},
		"confidence":  {Type: genai.TypeNumber},
	},
	Required: []string{"score", "explanation", "confidence"},
}

func gradePrompt(task Task, finalParams map[string]float64, timeTaken float64) (string, error) {
	state, err := json.Marshal(finalParams)
	if err != nil {
		return "", errors.Wrap(err, "encoding student state")
	}
	var b strings.Builder
	b.WriteString("Evaluate student performance.\n")
	fmt.Fprintf(&b, "Subject: %s\n", task.Type)
	fmt.Fprintf(&b, "Goal: %s\n", task.Instructions)
	fmt.Fprintf(&b, "Target: %v\n", task.TargetValue)
	fmt.Fprintf(&b, "Student State: %s\n", state)
	fmt.Fprintf(&b, "Time: %vs.\n\n", timeTaken)
	b.WriteString("Return JSON with score (0-100), explanation and confidence (0-1).")
	return b.String(), nil
}

func (g *GeminiGrader) Grade(ctx context.Context, task Task, finalParams map[string]float64, timeTaken float64) (progress.AssessmentResult, error) {
	prompt, err := gradePrompt(task, finalParams, timeTaken)
	if err != nil {
		return progress.AssessmentResult{}, err
	}

	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   gradeSchema,
		},
	)
	if err != nil {
		return progress.AssessmentResult{}, errors.Wrap(err, "generating grade")
	}
	return parseGrade(resp.Text())
}

func parseGrade(text string) (progress.AssessmentResult, error) {
	text = core.CleanString(text)
	if text == "" {
		return progress.AssessmentResult{}, ErrEmptyResponse
	}

	var res progress.AssessmentResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return progress.AssessmentResult{}, errors.Wrap(err, "decoding grade")
	}
	res.Score = res.Score.OrZero()
	if res.Explanation == "" {
		res.Explanation = "No explanation given."
	}
	switch {
	case res.Confidence < 0:
		res.Confidence = 0
	case res.Confidence > 1:
		res.Confidence = 1
	}
	return res, nil
}
