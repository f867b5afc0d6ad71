// Package profile reads and writes research profiles as YAML.
package profile

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/supervisor-cli/internal/model"
)

// document is the on-disk layout: a top-level "research_profile" key.
type document struct {
	Profile model.ResearchProfile `yaml:"research_profile"`
}

// Load reads a research profile from a YAML file. Both the wrapped layout
// and a bare profile mapping are accepted. Keywords are trimmed and empty
// entries dropped; a profile without core or adjacent keywords is an error.
func Load(path string) (model.ResearchProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return model.ResearchProfile{}, eris.Wrapf(err, "profile: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML research profile.
func Parse(data []byte) (model.ResearchProfile, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.ResearchProfile{}, eris.Wrap(err, "profile: parse yaml")
	}
	p := doc.Profile
	if p.Empty() {
		// Bare mapping without the wrapper key.
		if err := yaml.Unmarshal(data, &p); err != nil {
			return model.ResearchProfile{}, eris.Wrap(err, "profile: parse yaml")
		}
	}

	p = Clean(p)
	if p.Empty() {
		return p, eris.New("profile: no core or adjacent keywords")
	}
	return p, nil
}

// Write encodes p as YAML under the "research_profile" key.
func Write(w io.Writer, p model.ResearchProfile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Profile: p}); err != nil {
		return eris.Wrap(err, "profile: encode yaml")
	}
	return eris.Wrap(enc.Close(), "profile: flush yaml")
}

// Save writes p to path, creating or truncating the file.
func Save(path string, p model.ResearchProfile) error {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return eris.Wrapf(err, "profile: create %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Write(f, p)
}

// Clean trims every list and drops blanks and case-insensitive repeats.
func Clean(p model.ResearchProfile) model.ResearchProfile {
	return model.ResearchProfile{
		Core:                 cleanList(p.Core),
		Adjacent:             cleanList(p.Adjacent),
		Negative:             cleanList(p.Negative),
		PreferredDepartments: cleanList(p.PreferredDepartments),
		QueryTemplates:       cleanList(p.QueryTemplates),
	}
}

func cleanList(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
