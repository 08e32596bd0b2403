package loader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campus-rag/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func spanText(text string, s domain.Span) string {
	return string([]rune(text)[s.Start:s.End])
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "a.md", "a.MARKDOWN", "a.html", "a.htm", "a.pdf", "a.docx"} {
		_, err := ForFile(name)
		assert.NoError(t, err, name)
		assert.True(t, IsSupported(name), name)
	}

	_, err := ForFile("slides.pptx")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, IsSupported("slides.pptx"))
}

func TestParse_TextKeepsContent(t *testing.T) {
	parsed, err := Parse(strings.NewReader("\ufeffLibrary hours.\n\nOpen 9 to 5."), "hours.txt")
	require.NoError(t, err)
	assert.Equal(t, "hours", parsed.Title)
	assert.Equal(t, "Library hours.\n\nOpen 9 to 5.", parsed.Text)
	assert.Empty(t, parsed.Pages)
}

func TestParse_TextRejectsBinary(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte{0xff, 0xfe, 0x00, 0x81}), "blob.txt")
	assert.Error(t, err)
}

func TestParse_Markdown(t *testing.T) {
	src := "# Exam Regulations\n\nRules below.\n\n```\nno phones\n```\n"
	parsed, err := Parse(strings.NewReader(src), "exams.md")
	require.NoError(t, err)

	assert.Equal(t, "Exam Regulations", parsed.Title)
	assert.Equal(t, src, parsed.Text)
	require.Len(t, parsed.Units, 1)
	assert.Equal(t, "```\nno phones\n```", spanText(parsed.Text, parsed.Units[0]))
}

func TestParse_HTML(t *testing.T) {
	src := `<html><head><title>Campus Dining</title><style>p{}</style></head>
<body>
<nav>Home | About</nav>
<h1>Dining  halls</h1>
<p>The main hall opens at
   7am.</p>
<script>var x = 1;</script>
<table><tr><th>Day</th><th>Hours</th></tr><tr><td>Sat</td><td>9-2</td></tr></table>
<ul><li>Vegan options</li></ul>
</body></html>`

	parsed, err := Parse(strings.NewReader(src), "dining.html")
	require.NoError(t, err)

	assert.Equal(t, "Campus Dining", parsed.Title)
	assert.Equal(t, "Dining halls\n\nThe main hall opens at 7am.\n\nDay | Hours\nSat | 9-2\n\nVegan options", parsed.Text)
	assert.NotContains(t, parsed.Text, "var x")
	assert.NotContains(t, parsed.Text, "About")
	require.Len(t, parsed.Units, 1)
	assert.Equal(t, "Day | Hours\nSat | 9-2", spanText(parsed.Text, parsed.Units[0]))
}

func TestParse_HTMLTitleFallsBackToFilename(t *testing.T) {
	parsed, err := Parse(strings.NewReader("<p>Só texto.</p>"), "notice.htm")
	require.NoError(t, err)
	assert.Equal(t, "notice", parsed.Title)
	assert.Equal(t, "Só texto.", parsed.Text)
}

func TestParse_DOCX(t *testing.T) {
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText("Housing application")
	w.AddParagraph().AddText("Apply before June.")
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := Parse(&buf, "housing.docx")
	require.NoError(t, err)
	assert.Equal(t, "housing", parsed.Title)
	assert.Equal(t, "Housing application\n\nApply before June.", parsed.Text)
}

func TestParse_CorruptBinaryFormats(t *testing.T) {
	for _, name := range []string{"broken.pdf", "broken.docx"} {
		_, err := Parse(strings.NewReader("definitely not a real file"), name)
		assert.Error(t, err, name)
	}
}

func TestJoinerOffsets(t *testing.T) {
	var j joiner
	assert.Equal(t, 0, j.add("Über"))
	assert.Equal(t, 6, j.add("page two"))
	assert.Equal(t, "Über\n\npage two", j.String())
}

func TestDir_Load(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "handbook.md", "# Student Handbook\n\nWelcome.")
	writeFile(t, root, "policies/parking.txt", "Parking permits are required.")
	writeFile(t, root, "policies/broken.pdf", "not a pdf")
	writeFile(t, root, "images/logo.png", "\x89PNG")
	writeFile(t, root, ".git/config.txt", "ignored")

	docs, failed, err := NewDir(root, nil).Load(context.Background(), domain.AdminCorpus)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "handbook.md", docs[0].ID)
	assert.Equal(t, "Student Handbook", docs[0].Title)
	assert.Equal(t, "policies/parking.txt", docs[1].ID)
	assert.Equal(t, "parking", docs[1].Title)
	for _, d := range docs {
		assert.Equal(t, domain.AdminCorpus, d.Corpus)
	}

	require.Len(t, failed, 1)
	assert.Equal(t, "policies/broken.pdf", failed[0].Path)
	assert.NotEmpty(t, failed[0].Reason)
}

func TestDir_LoadMissingRoot(t *testing.T) {
	_, _, err := NewDir(filepath.Join(t.TempDir(), "missing"), nil).Load(context.Background(), domain.AdminCorpus)
	assert.Error(t, err)
}

func TestDir_LoadCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewDir(root, nil).Load(ctx, domain.AdminCorpus)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "Lecture notes.")
	doc, err := LoadFile(path, "upload-1", domain.SessionCorpus("s1"))
	require.NoError(t, err)
	assert.Equal(t, "upload-1", doc.ID)
	assert.Equal(t, "notes", doc.Title)
	assert.Equal(t, domain.SessionCorpus("s1"), doc.Corpus)
}
