package gemini

import "google.golang.org/genai"

// DeckOutline is the structured deck the model is asked to return.
type DeckOutline struct {
	Title  string        `json:"title"`
	Slides []SlideSchema `json:"slides"`
}

// SlideSchema is one slide in a DeckOutline.
type SlideSchema struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Notes   string   `json:"notes,omitempty"`
}

func outlineSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {Type: genai.TypeString},
			"slides": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":   {Type: genai.TypeString},
						"bullets": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
						"notes":   {Type: genai.TypeString},
					},
					Required: []string{"title", "bullets"},
				},
			},
		},
		Required: []string{"title", "slides"},
	}
}
