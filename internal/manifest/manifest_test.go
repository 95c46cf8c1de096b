package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillshub/internal/faults"
)

func TestParseDelimiterStyles(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"dashes", "---\nname: writer-helper\ndescription: drafts text\n---\nbody"},
		{"long dash run", "--------\nname: writer-helper\n--------\nbody"},
		{"asterisks", "***\nname: writer-helper\n***\nbody"},
		{"em dashes", "———\nname: writer-helper\n———\nbody"},
		{"en dashes", "–––\nname: writer-helper\n–––\nbody"},
		{"mixed open close", "---\nname: writer-helper\n***\nbody"},
		{"crlf", "---\r\nname: writer-helper\r\n---\r\nbody"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Parse([]byte(tc.input))
			require.NoError(t, err)
			assert.Equal(t, "writer-helper", m.Name)
		})
	}
}

func TestParseMissingFrontmatter(t *testing.T) {
	_, err := Parse([]byte("# just a heading\n\nno frontmatter here\n"))
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.Validation))
}

func TestParseUnclosedFrontmatter(t *testing.T) {
	_, err := Parse([]byte("---\nname: foo\nnever closed"))
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.Validation))
}

func TestParseMissingName(t *testing.T) {
	_, err := Parse([]byte("---\ndescription: no name\n---\n"))
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.Validation))
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("---\nname: [unterminated\n---\n"))
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.Validation))
}

func TestParseNormalizesDescription(t *testing.T) {
	m, err := Parse([]byte("---\nname: foo\ndescription: |\n  line one\n  line two\n---\n"))
	require.NoError(t, err)
	assert.Equal(t, "line one line two", m.Description)
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Writer Helper", "writer-helper"},
		{"  My   Skill  ", "my-skill"},
		{"already-valid_name", "already-valid_name"},
		{"Émigré notes!", "migr-notes"},
		{"skill.name.dots", "skill-name-dots"},
		{"___leading", "leading"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeNameLength(t *testing.T) {
	long := ""
	for i := 0; i < 10; i++ {
		long += "abcdefghij"
	}
	got := NormalizeName(long)
	assert.Len(t, got, 64)
	assert.True(t, ValidName(got))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := "---\nname: from-disk\ndescription: loaded\n---\n# Usage\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-disk", m.Name)
	assert.Equal(t, "loaded", m.Description)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.True(t, os.IsNotExist(err))
}
