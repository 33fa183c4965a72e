package docs

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// readmeTopics returns the topics listed in readme.md as "* name: description".
func readmeTopics(t *testing.T) []string {
	t.Helper()
	file, err := os.Open("readme.md")
	require.NoError(t, err)
	defer file.Close()

	var topics []string
	topicRegex := regexp.MustCompile(`^\*\s+([^:]+):.*$`)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := topicRegex.FindStringSubmatch(scanner.Text()); len(m) > 1 {
			topics = append(topics, strings.TrimSpace(m[1]))
		}
	}
	require.NoError(t, scanner.Err())
	return topics
}

func TestTopics(t *testing.T) {
	listed := readmeTopics(t)
	for _, topic := range listed {
		t.Run("load_"+topic, func(t *testing.T) {
			content, err := GetTopic(topic)
			require.NoError(t, err)
			assert.NotEmpty(t, strings.TrimSpace(content))
		})
	}

	// Every topic file is listed in the readme.
	files, err := filepath.Glob("*.md")
	require.NoError(t, err)
	for _, file := range files {
		if name := strings.TrimSuffix(file, ".md"); name != "readme" && !slices.Contains(listed, name) {
			t.Errorf("topic %q is not listed in readme.md", name)
		}
	}

	all, err := GetAllTopics()
	require.NoError(t, err)
	assert.Equal(t, []string{"dates", "sales", "tools"}, all)
}

func TestGetTopicUnknown(t *testing.T) {
	_, err := GetTopic("nope")
	assert.ErrorContains(t, err, `topic "nope" not found`)
}

func TestGetTopicsStar(t *testing.T) {
	got, err := GetTopic("*")
	require.NoError(t, err)
	for _, topic := range []string{"dates", "sales", "tools"} {
		content, err := GetTopic(topic)
		require.NoError(t, err)
		assert.Contains(t, got, content)
	}
}

// TestTopicsAreWellFormed parses every topic and checks it starts with prose and has no
// dangling fenced block language.
func TestTopicsAreWellFormed(t *testing.T) {
	files, err := filepath.Glob("*.md")
	require.NoError(t, err)
	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			content, err := os.ReadFile(file)
			require.NoError(t, err)
			root := goldmark.DefaultParser().Parse(text.NewReader(content))
			first := root.FirstChild()
			require.NotNil(t, first, "empty topic")
			if file != "readme.md" {
				assert.Equal(t, ast.KindParagraph, first.Kind(), "a topic starts with a paragraph")
			}
			err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
				if fcb, ok := n.(*ast.FencedCodeBlock); ok && entering && fcb.Info == nil {
					t.Errorf("fenced block without a language in %s", file)
				}
				return ast.WalkContinue, nil
			})
			require.NoError(t, err)
		})
	}
}
