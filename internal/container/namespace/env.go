package namespace

import (
	"strings"

	"korobok/internal/container/spec"
)

// BuildEnv returns the environment for the entry command. With unset the
// inherited variables are dropped first, so overrides always survive; later
// entries win over earlier ones with the same name. Order of first
// appearance is kept.
func BuildEnv(inherited []string, unset bool, overrides []spec.EnvVar) []string {
	var base []string
	if !unset {
		base = inherited
	}
	index := make(map[string]int, len(base)+len(overrides))
	out := make([]string, 0, len(base)+len(overrides))
	set := func(name, kv string) {
		if i, ok := index[name]; ok {
			out[i] = kv
			return
		}
		index[name] = len(out)
		out = append(out, kv)
	}
	for _, kv := range base {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		set(name, kv)
	}
	for _, o := range overrides {
		set(o.Name, o.String())
	}
	return out
}
