package story_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyworld/internal/story"
)

const twoStories = `{
  "1": {
    "title": "Cellar",
    "nodes": {
      "start": {"content": "Dark.", "choices": [{"text": "Light a match", "next": "lit"}]},
      "lit": {"content": "Bright.", "choices": []}
    }
  },
  "2": {
    "title": "Attic",
    "nodes": {
      "start": {"content": "Dusty.", "choices": []}
    }
  }
}`

func TestDecode_JSON(t *testing.T) {
	graphs, err := story.Decode([]byte(twoStories), story.FormatJSON)
	require.NoError(t, err)
	require.Len(t, graphs, 2)

	cellar := graphs["1"]
	assert.Equal(t, "1", cellar.ID())
	assert.Equal(t, "Cellar", cellar.Title())
	assert.Equal(t, []string{"lit", "start"}, cellar.Keys())

	start, ok := cellar.Node("start")
	require.True(t, ok)
	assert.Equal(t, "Dark.", start.Content)
	assert.Equal(t, []story.Choice{{Text: "Light a match", Next: "lit"}}, start.Choices)

	lit, ok := cellar.Node("lit")
	require.True(t, ok)
	assert.NotNil(t, lit.Choices)
	assert.Empty(t, lit.Choices)
}

func TestDecode_YAML(t *testing.T) {
	doc := `
"7":
  title: Pier
  nodes:
    start:
      content: Waves.
      choices:
        - text: Jump
          next: sea
    sea:
      content: Cold.
      choices: []
`
	graphs, err := story.Decode([]byte(doc), story.FormatYAML)
	require.NoError(t, err)
	require.Contains(t, graphs, "7")
	assert.Equal(t, 2, graphs["7"].Len())
	assert.True(t, graphs["7"].Has("sea"))
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"1": `},
		{"empty document", `{}`},
		{"missing title", `{"1": {"nodes": {"start": {"content": "x", "choices": []}}}}`},
		{"no nodes", `{"1": {"title": "T", "nodes": {}}}`},
		{"missing start", `{"1": {"title": "T", "nodes": {"a": {"content": "x", "choices": []}}}}`},
		{"missing choices", `{"1": {"title": "T", "nodes": {"start": {"content": "x"}}}}`},
		{"empty content", `{"1": {"title": "T", "nodes": {"start": {"content": "", "choices": []}}}}`},
		{"markup-only content", `{"1": {"title": "T", "nodes": {"start": {"content": "<b></b>", "choices": []}}}}`},
		{"markup-only title", `{"1": {"title": " <i> </i> ", "nodes": {"start": {"content": "x", "choices": []}}}}`},
		{"markup-only choice text", `{"1": {"title": "T", "nodes": {"start": {"content": "x", "choices": [{"text": "<br>", "next": "start"}]}}}}`},
		{"choice without next", `{"1": {"title": "T", "nodes": {"start": {"content": "x", "choices": [{"text": "go"}]}}}}`},
		{"wrong type", `{"1": {"title": 5, "nodes": {}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := story.Decode([]byte(tt.doc), story.FormatJSON)
			require.Error(t, err)
			assert.True(t, errors.Is(err, story.ErrMalformedStory))
			assert.True(t, errors.Is(err, story.ErrLoadTransport))
			assert.Equal(t, "malformed_story", story.Kind(err))
		})
	}
}

func TestDecode_DanglingLinksAreAccepted(t *testing.T) {
	doc := `{"1": {"title": "T", "nodes": {"start": {"content": "x", "choices": [{"text": "go", "next": "missing"}]}}}}`
	graphs, err := story.Decode([]byte(doc), story.FormatJSON)
	require.NoError(t, err)
	assert.False(t, graphs["1"].Has("missing"))
}

func TestDecode_StripsMarkup(t *testing.T) {
	doc := `{"1": {"title": "<b>Bold</b> & brave", "nodes": {"start": {"content": "A <script>alert(1)</script>door &amp; a <i>key</i>.", "choices": []}}}}`
	graphs, err := story.Decode([]byte(doc), story.FormatJSON)
	require.NoError(t, err)

	g := graphs["1"]
	assert.Equal(t, "Bold & brave", g.Title())
	start, _ := g.Node("start")
	assert.Equal(t, "A door & a key.", start.Content)
}

func TestDecode_EntitiesDecodedWithOrWithoutTags(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"Tom &amp; <i>Jerry</i>", "Tom & Jerry"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"1 &lt; 2", "1 < 2"},
		{`Say "hi"`, `Say "hi"`},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			raw, err := json.Marshal(tt.content)
			require.NoError(t, err)
			doc := `{"1": {"title": "T", "nodes": {"start": {"content": ` + string(raw) + `, "choices": [{"text": ` + string(raw) + `, "next": "start"}]}}}}`

			graphs, err := story.Decode([]byte(doc), story.FormatJSON)
			require.NoError(t, err)
			start, _ := graphs["1"].Node("start")
			assert.Equal(t, tt.want, start.Content)
			assert.Equal(t, tt.want, start.Choices[0].Text)
		})
	}
}

func TestEncodeGraph_RoundTripsThroughDecodeGraph(t *testing.T) {
	graphs, err := story.Decode([]byte(twoStories), story.FormatJSON)
	require.NoError(t, err)

	encoded, err := story.EncodeGraph(graphs["1"])
	require.NoError(t, err)

	back, err := story.DecodeGraph("1", encoded, story.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, graphs["1"].Title(), back.Title())
	assert.Equal(t, graphs["1"].Keys(), back.Keys())

	viaMarshal, err := json.Marshal(graphs["1"])
	require.NoError(t, err)
	assert.JSONEq(t, string(encoded), string(viaMarshal))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, story.FormatYAML, story.FormatFromPath("stories.yaml"))
	assert.Equal(t, story.FormatYAML, story.FormatFromPath("/tmp/STORIES.YML"))
	assert.Equal(t, story.FormatJSON, story.FormatFromPath("storyData.json"))
	assert.Equal(t, story.FormatJSON, story.FormatFromPath("https://example.com/stories"))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", story.Kind(nil))
	assert.Equal(t, "story_not_found", story.Kind(story.ErrStoryNotFound))
	assert.Equal(t, "broken_link", story.Kind(story.ErrBrokenLink))
	assert.Equal(t, "invalid_choice", story.Kind(story.ErrInvalidChoice))
	assert.Equal(t, "load_failed", story.Kind(story.ErrLoadTransport))
	assert.Equal(t, "internal", story.Kind(errors.New("boom")))
}
