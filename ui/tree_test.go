package ui

import "testing"

func TestTreePrefixBuilder_BuildPrefix(t *testing.T) {
	builder := TreePrefixBuilder{}

	tests := []struct {
		name         string
		depth        int
		isLast       bool
		parentIsLast []bool
		expected     string
	}{
		{"depth 0", 0, false, []bool{}, ""},
		{"depth 1, not last", 1, false, []bool{}, "├── "},
		{"depth 1, is last", 1, true, []bool{}, "└── "},
		{"depth 2, parent not last, not last", 2, false, []bool{false}, "│   ├── "},
		{"depth 2, parent was last, is last", 2, true, []bool{true}, "    └── "},
		{"depth 3, complex hierarchy", 3, false, []bool{false, true}, "│       ├── "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := builder.BuildPrefix(tt.depth, tt.isLast, tt.parentIsLast)
			if result != tt.expected {
				t.Errorf("BuildPrefix(%d, %v, %v) = %q, want %q",
					tt.depth, tt.isLast, tt.parentIsLast, result, tt.expected)
			}
		})
	}
}

func TestBuildTreePrefix_MatchesBuilder(t *testing.T) {
	depth, isLast, parentIsLast := 2, true, []bool{false}

	builder := TreePrefixBuilder{}
	want := builder.BuildPrefix(depth, isLast, parentIsLast)
	got := BuildTreePrefix(depth, isLast, parentIsLast)

	if want != got {
		t.Errorf("BuildTreePrefix = %q, want %q", got, want)
	}
}
