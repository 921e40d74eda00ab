package roster

import (
	"embed"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// Scenarios lists the names of the bundled rosters.
func Scenarios() []string {
	entries, err := scenarioFS.ReadDir("scenarios")
	if err != nil {
		return nil
	}
	var ret []string
	for _, e := range entries {
		ret = append(ret, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(ret)
	return ret
}

// Raw returns the YAML source of a bundled roster.
func Raw(name string) ([]byte, error) {
	b, err := scenarioFS.ReadFile(path.Join("scenarios", name+".yaml"))
	if err != nil {
		return nil, errors.Errorf("unknown scenario %s, available: %s", name, strings.Join(Scenarios(), ", "))
	}
	return b, nil
}

// Scenario parses a bundled roster.
func Scenario(name string) (*Roster, error) {
	b, err := Raw(name)
	if err != nil {
		return nil, err
	}
	r, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", name)
	}
	return r, nil
}
