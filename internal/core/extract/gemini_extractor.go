package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Condensa/internal/core"
)

var _ core.DocumentExtractor = (*GeminiExtractor)(nil)

const extractionPrompt = `Analyze this document and extract all contents in markdown format.

For text content:
- Extract all text preserving structure and formatting
- Use appropriate markdown headers, lists, tables, superscript, subscripts, chemical formulas, etc.

For figures, charts, or graphs:
- Provide a detailed summary describing what the visual represents
- Include key data points, trends, or insights visible in the visual
- Format as: **[Figure/Chart/Graph Summary]:** [your description]

Please be thorough and accurate in your extraction.`

// GeminiExtractor is the vision-assisted mode: the document bytes go to a
// multimodal model that reads the rendered pages, so scanned or image-heavy
// PDFs still come back as text.
type GeminiExtractor struct {
	client    *genai.Client
	modelName string
}

func NewGeminiExtractor(ctx context.Context, apiKey, modelName string) (*GeminiExtractor, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash-exp"
	}
	return &GeminiExtractor{client: cl, modelName: modelName}, nil
}

func (e *GeminiExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *GeminiExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	m := e.client.GenerativeModel(e.modelName)

	resp, err := m.GenerateContent(ctx,
		genai.Text(extractionPrompt),
		genai.Blob{MIMEType: "application/pdf", Data: data},
	)
	if err != nil {
		return "", fmt.Errorf("%w: gemini extraction: %v", core.ErrExtractionFailed, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no content for %s", core.ErrExtractionFailed, filename)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", filename)
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
