package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aca-libraries/libstats/internal/frame"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"TEXT", ModeText, false},
		{" markdown ", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveMode_AutoIsMarkdownOffTerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r = NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeText)
	assert.Equal(t, ModeText, r.EffectiveMode())
}

func TestRenderer_Markdown(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRenderer(&out, &errOut, ModeMarkdown)

	r.Header(2, "Tables")
	r.StatusLine("al2019", "success", "34 rows")
	r.KeyValue("Database", "bcla.sqlite")
	r.Warning("missing HD2024")

	assert.Contains(t, out.String(), "## Tables\n")
	assert.Contains(t, out.String(), "- ✓ al2019 (34 rows)\n")
	assert.Contains(t, out.String(), "**Database:** bcla.sqlite\n")
	assert.Equal(t, "Warning: missing HD2024\n", errOut.String())
}

func TestRenderer_TextTable(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeText)

	f := frame.New("Year", "DRVEF")
	require.NoError(t, f.Append("2019", int64(34)))
	r.Frame(f)

	assert.Contains(t, out.String(), "YEAR")
	assert.Contains(t, out.String(), "2019")
	assert.Contains(t, out.String(), "┌")
}

func TestRenderer_MarkdownTable(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeMarkdown)
	r.Table([]string{"Year", "AL"}, [][]string{{"2020", "N/A"}})
	assert.Contains(t, out.String(), "| Year | AL |")
	assert.Contains(t, out.String(), "| 2020 | N/A |")
}

func TestRenderer_EmptyTable(t *testing.T) {
	var out bytes.Buffer
	NewRenderer(&out, &bytes.Buffer{}, ModeText).Table([]string{"A"}, nil)
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"tables": 3}))
	assert.JSONEq(t, `{"tables":3}`, out.String())
}
