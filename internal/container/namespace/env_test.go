package namespace_test

import (
	"reflect"
	"testing"

	"korobok/internal/container/namespace"
	"korobok/internal/container/spec"
)

func TestBuildEnv(t *testing.T) {
	inherited := []string{"PATH=/bin", "HOME=/root", "A=0"}
	cases := []struct {
		name      string
		unset     bool
		overrides []spec.EnvVar
		want      []string
	}{
		{
			name:      "unset keeps only overrides",
			unset:     true,
			overrides: []spec.EnvVar{{Name: "A", Value: "1"}},
			want:      []string{"A=1"},
		},
		{
			name:      "inherit and override",
			overrides: []spec.EnvVar{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}},
			want:      []string{"PATH=/bin", "HOME=/root", "A=1", "B=2"},
		},
		{
			name:      "later override wins",
			unset:     true,
			overrides: []spec.EnvVar{{Name: "A", Value: "1"}, {Name: "B", Value: "x"}, {Name: "A", Value: "2"}},
			want:      []string{"A=2", "B=x"},
		},
		{
			name:  "unset with nothing",
			unset: true,
			want:  []string{},
		},
		{
			name:      "empty value",
			unset:     true,
			overrides: []spec.EnvVar{{Name: "EMPTY"}},
			want:      []string{"EMPTY="},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := namespace.BuildEnv(inherited, tc.unset, tc.overrides)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestBuildEnvDoesNotMutateInput(t *testing.T) {
	inherited := []string{"A=0", "B=0"}
	_ = namespace.BuildEnv(inherited, false, []spec.EnvVar{{Name: "A", Value: "1"}})
	if inherited[0] != "A=0" {
		t.Fatalf("inherited slice was modified: %v", inherited)
	}
}

func TestBuildEnvSkipsMalformedEntries(t *testing.T) {
	got := namespace.BuildEnv([]string{"NOEQUALS", "=x", "OK=1"}, false, nil)
	if !reflect.DeepEqual(got, []string{"OK=1"}) {
		t.Fatalf("got %v", got)
	}
}
