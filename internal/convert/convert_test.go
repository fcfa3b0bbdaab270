// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverter struct {
	output string
	err    error
	paths  []string
}

func (f *fakeConverter) Convert(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.output, f.err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestExtract_Text(t *testing.T) {
	p := writeFile(t, "notes.txt", "  first   line \n\n\n second\tline  \n")
	got, err := NewExtractor().Extract(context.Background(), p, ".txt")
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line", got)
}

func TestExtract_TextMaxBytes(t *testing.T) {
	p := writeFile(t, "big.txt", strings.Repeat("a", 100))
	got, err := NewExtractor(WithMaxBytes(10)).Extract(context.Background(), p, ".TXT")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 10), got)
}

func TestExtract_HTML(t *testing.T) {
	page := `<html><head><title>Flood Report</title><style>p{color:red}</style></head>
<body><nav>Home | About</nav><h1>Findings</h1><p>Water levels rose.</p>
<script>var x = 1;</script><footer>Copyright</footer></body></html>`
	p := writeFile(t, "page.html", page)

	got, err := NewExtractor().Extract(context.Background(), p, ".html")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Flood Report\n"), got)
	assert.Contains(t, got, "Findings")
	assert.Contains(t, got, "Water levels rose.")
	for _, gone := range []string{"color:red", "var x", "Home | About", "Copyright"} {
		assert.NotContains(t, got, gone)
	}
}

func TestExtract_Converter(t *testing.T) {
	p := writeFile(t, "paper.pdf", "%PDF")
	fc := &fakeConverter{output: "# Title\n\nBody text."}

	got, err := NewExtractor(WithConverter(fc)).Extract(context.Background(), p, ".pdf")
	require.NoError(t, err)
	assert.Equal(t, "# Title\nBody text.", got)
	assert.Equal(t, []string{p}, fc.paths)
}

func TestExtract_Errors(t *testing.T) {
	ctx := context.Background()
	pdf := writeFile(t, "paper.pdf", "%PDF")

	_, err := NewExtractor().Extract(ctx, pdf, ".pdf")
	assert.ErrorIs(t, err, ErrNoConverter)

	_, err = NewExtractor().Extract(ctx, pdf, ".zip")
	assert.ErrorIs(t, err, ErrUnsupported)

	boom := errors.New("boom")
	_, err = NewExtractor(WithConverter(&fakeConverter{err: boom})).Extract(ctx, pdf, ".docx")
	assert.ErrorIs(t, err, boom)

	blank := writeFile(t, "blank.txt", " \n\t\n")
	_, err = NewExtractor().Extract(ctx, blank, ".txt")
	assert.ErrorIs(t, err, ErrNoText)

	_, err = NewExtractor().Extract(ctx, filepath.Join(t.TempDir(), "missing.txt"), ".txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// fakeRuntime satisfies container.Runtime.
type fakeRuntime struct {
	images map[string]bool
	out    string
	got    string
}

func (f *fakeRuntime) Name() string { return "docker" }
func (f *fakeRuntime) Available(context.Context) bool { return true }

func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	if f.images[image] {
		return nil
	}
	return errors.New("no such image")
}

func (f *fakeRuntime) Run(_ context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	data, _ := io.ReadAll(stdin)
	f.got = string(data)
	_, err := io.Copy(stdout, bytes.NewBufferString(f.out))
	return err
}

func TestMarkitdownConverter(t *testing.T) {
	ctx := context.Background()
	rt := &fakeRuntime{images: map[string]bool{DefaultMarkitdownImage: true}, out: "converted"}

	_, err := NewMarkitdownConverter(ctx, rt, "other:1")
	require.Error(t, err)

	m, err := NewMarkitdownConverter(ctx, rt, "")
	require.NoError(t, err)

	p := writeFile(t, "doc.docx", "raw bytes")
	got, err := m.Convert(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "converted", got)
	assert.Equal(t, "raw bytes", rt.got)

	rt.out = ""
	_, err = m.Convert(ctx, p)
	assert.ErrorContains(t, err, "empty output")
}
