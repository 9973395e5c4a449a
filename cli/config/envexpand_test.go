package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("NB_SET", "real")
	t.Setenv("NB_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "v: ${NB_SET}", "v: real"},
		{"unset", "v: ${NB_UNSET_12345}", "v: "},
		{"colon default when unset", "v: ${NB_UNSET_12345:-fallback}", "v: fallback"},
		{"colon default when empty", "v: ${NB_EMPTY:-fallback}", "v: fallback"},
		{"colon default ignored when set", "v: ${NB_SET:-fallback}", "v: real"},
		{"dash default when unset", "v: ${NB_UNSET_12345-fallback}", "v: fallback"},
		{"dash default keeps empty", "v: ${NB_EMPTY-fallback}", "v: "},
		{"default with colon", "addr: ${NB_UNSET_12345:-127.0.0.1:8080}", "addr: 127.0.0.1:8080"},
		{"multiple", "${NB_SET}/${NB_UNSET_12345:-x}", "real/x"},
		{"bare dollar untouched", "cost: $5 and $NB_SET", "cost: $5 and $NB_SET"},
		{"invalid name untouched", "${1BAD}", "${1BAD}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
