package cvtext

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCV = `Jane Student
jane@example.com

EDUCATION
MSc Medical Physics, University of Leeds

RESEARCH INTERESTS
Medical imaging and image reconstruction.

REFERENCES
Available on request.

## Publications
Student J. et al. MRI reconstruction. 2024.

Technical Skills:
Python, MATLAB`

func TestSections(t *testing.T) {
	got := Sections(sampleCV)

	assert.Contains(t, got, "[EDUCATION]\nEDUCATION\nMSc Medical Physics")
	assert.Contains(t, got, "[RESEARCH]\nRESEARCH INTERESTS\nMedical imaging")
	assert.Contains(t, got, "[PUBLICATIONS]")
	assert.Contains(t, got, "[SKILLS]\nTechnical Skills:\nPython, MATLAB")
	assert.NotContains(t, got, "Available on request")
	assert.NotContains(t, got, "jane@example.com")
}

func TestSections_NoHeaders(t *testing.T) {
	assert.Equal(t, "I like medical imaging.", Sections("  I like medical imaging.\n"))
}

func TestSections_Capped(t *testing.T) {
	got := Sections("Research\n" + strings.Repeat("imaging ", 1000))
	assert.Equal(t, MaxChars+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestRead(t *testing.T) {
	dir := t.TempDir()

	md := filepath.Join(dir, "cv.md")
	require.NoError(t, os.WriteFile(md, []byte("\ufeff# CV\nResearch"), 0o600))
	text, err := Read(md)
	require.NoError(t, err)
	assert.Equal(t, "# CV\nResearch", text)

	pdf := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o600))
	_, err = Read(pdf)
	assert.ErrorContains(t, err, "unsupported CV format")

	_, err = Read(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	bin := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(bin, []byte{0xff, 0xfe, 0x00}, 0o600))
	_, err = Read(bin)
	assert.Error(t, err)
}
