package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OCAP2/annotator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func runCLI(t *testing.T, dir string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{"--config", dir, "--logsDir", filepath.Join(dir, "logs")}
	code := run(append(base, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage: annotator")

	dir := t.TempDir()
	code, _, errOut := runCLI(t, dir, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, t.TempDir(), "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "annotator dev"))
}

func TestReplay_DrawsAndExports(t *testing.T) {
	dir := t.TempDir()
	still := filepath.Join(dir, "white board.png")
	writePNG(t, still, 800, 600)
	outDir := filepath.Join(dir, "exports")

	script := strings.Join([]string{
		"# annotate a still",
		":RESIZE: 432 2000",
		`:LOAD: "` + still + `"`,
		":TOOL: rect-fill",
		":STYLE: #00FF00 6",
		":POINTER:DOWN: 10 10",
		":POINTER:MOVE: 60 60",
		":POINTER:UP: 60 60",
		"",
		":PROMPT: hello world",
		":TOOL: text",
		":POINTER:UP: 200 200",
		":EXPORT: file",
	}, "\n")
	scriptPath := filepath.Join(dir, "session.txt")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0644))

	code, out, errOut := runCLI(t, dir, "--export.outputDir", outDir, "replay", scriptPath)
	require.Equal(t, 0, code, errOut)

	path := strings.TrimSpace(out)
	assert.Equal(t, outDir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "white_board_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc storage.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 800.0, doc.NaturalWidth)
	assert.Equal(t, "image", doc.MediaType)
	require.Len(t, doc.Annotations, 2)

	rect := doc.Annotations[0]
	assert.Equal(t, "rect-fill", rect.Type)
	require.NotNil(t, rect.Geometry.Width)
	assert.Equal(t, 100.0, *rect.Geometry.Width, "drawn at half scale")
	assert.Equal(t, "#00FF00", *rect.Geometry.Fill)

	text := doc.Annotations[1]
	assert.Equal(t, "text", text.Type)
	assert.Equal(t, "hello world", *text.Geometry.Text)
}

func TestReplay_FailingLines(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(scriptPath, []byte(":SEEK: 2\n:CLEAR:\n:NOPE:\n"), 0644))

	code, _, errOut := runCLI(t, dir, "replay", scriptPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bad.txt:1:")
	assert.Contains(t, errOut, "bad.txt:3:")
	assert.Contains(t, errOut, "2 script lines failed")

	code, _, errOut = runCLI(t, dir, "--strict", "replay", scriptPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "replay stopped at line 1")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"naturalWidth": 640, "naturalHeight": 480, "mediaType": "image",
		"annotations": [
			{"id": "a", "type": "rect-fill", "geometry": {"x": 0, "y": 0, "width": 10, "height": 10, "fill": "#000"}},
			{"id": "b", "type": "hexagon", "geometry": {"x": 1}}
		]
	}`), 0644))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`[1, 2`), 0644))

	code, out, _ := runCLI(t, dir, "validate", good)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "good.json: annotation #1 dropped")
	assert.Contains(t, out, "good.json: ok, 1 annotations, image 640x480")

	code, out, errOut := runCLI(t, dir, "validate", good, broken)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "broken.json: invalid annotation document")
	assert.Contains(t, errOut, "1 of 2 documents unreadable")
}

func TestRender_Still(t *testing.T) {
	dir := t.TempDir()
	still := filepath.Join(dir, "still.png")
	writePNG(t, still, 200, 100)
	doc := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{
		"naturalWidth": 200, "naturalHeight": 100, "mediaType": "image",
		"annotations": [
			{"id": "a", "type": "rect-fill", "geometry": {"x": 20, "y": 20, "width": 40, "height": 40, "fill": "#0000FF"}}
		]
	}`), 0644))
	outDir := filepath.Join(dir, "snaps")

	code, out, errOut := runCLI(t, dir, "--doc", doc, "--out", outDir, "--at", "1,2", "render", still)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, filepath.Join(outDir, "annotated_image.png"), strings.TrimSpace(out), "stills render once")

	f, err := os.Open(strings.TrimSpace(out))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())
	r, g, b, _ := img.At(40, 40).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0xffff}, [3]uint32{r, g, b})
}

func TestRender_MissingDoc(t *testing.T) {
	dir := t.TempDir()
	code, _, _ := runCLI(t, dir, "render", filepath.Join(dir, "x.png"))
	assert.Equal(t, 2, code)

	code, _, errOut := runCLI(t, dir, "--doc", filepath.Join(dir, "none.json"), "render", filepath.Join(dir, "x.png"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "reading document")
}
