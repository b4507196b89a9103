package notes

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/harun/memindex/pkg/memory"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Frontmatter is the metadata header of a note.
type Frontmatter struct {
	Tags        []string
	Description string
}

// ParseFrontmatter extracts the YAML block between the leading "---" line and
// the next "---" line. Content without such a block, invalid YAML and blocks
// that are not a mapping return memory.ErrNoMetadata.
func ParseFrontmatter(content []byte) (Frontmatter, error) {
	block, ok := splitFrontmatter(content)
	if !ok {
		return Frontmatter{}, memory.ErrNoMetadata
	}

	var node yaml.Node
	if err := yaml.Unmarshal(block, &node); err != nil {
		return Frontmatter{}, fmt.Errorf("%w: %v", memory.ErrNoMetadata, err)
	}
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return Frontmatter{}, fmt.Errorf("%w: header is not a mapping", memory.ErrNoMetadata)
	}

	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return Frontmatter{}, fmt.Errorf("%w: %v", memory.ErrNoMetadata, err)
	}

	return Frontmatter{
		Tags:        parseTags(raw["tags"]),
		Description: stringify(raw["description"]),
	}, nil
}

func splitFrontmatter(content []byte) ([]byte, bool) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimRight(scanner.Text(), " \r") != delimiter {
		return nil, false
	}

	var block bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimRight(line, " \r") == delimiter {
			return block.Bytes(), true
		}
		block.WriteString(strings.TrimSuffix(line, "\r"))
		block.WriteByte('\n')
	}
	return nil, false
}

// parseTags accepts a YAML list or a comma or space separated string.
func parseTags(v any) []string {
	tags := make([]string, 0)

	switch t := v.(type) {
	case nil:
	case []any:
		for _, item := range t {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				tags = append(tags, s)
			}
		}
	case string:
		for _, s := range strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			tags = append(tags, s)
		}
	default:
		if s := strings.TrimSpace(stringify(t)); s != "" {
			tags = append(tags, s)
		}
	}

	return tags
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
