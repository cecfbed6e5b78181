package scan

import (
	"cmp"
	"iter"
	"slices"
	"testing"

	"github.com/nobletooth/ttlcache/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestMultiHead(t *testing.T) {
	s1 := slices.Values([]utils.Pair[string, int]{{Key: "k1", Value: 11}, {Key: "k2", Value: 21}, {Key: "k3", Value: 31}, {Key: "k4", Value: 41}})
	s2 := slices.Values([]utils.Pair[string, int]{{Key: "k1", Value: 12}, {Key: "k2", Value: 22}, {Key: "k5", Value: 52}, {Key: "k6", Value: 62}})
	s3 := slices.Values([]utils.Pair[string, int]{{Key: "k1", Value: 13}, {Key: "k2", Value: 23}, {Key: "k4", Value: 43}, {Key: "k5", Value: 53}})
	s4 := slices.Values([]utils.Pair[string, int]{{Key: "k3", Value: 34}})
	merged, err := MultiHead(cmp.Compare[string], []iter.Seq[utils.Pair[string, int]]{s1, s2, s3, s4})
	assert.NoError(t, err)

	got := slices.Collect(merged)
	expected := []utils.Pair[string, int]{{Key: "k1", Value: 11}, {Key: "k2", Value: 21}, {Key: "k3", Value: 31}, {Key: "k4", Value: 41}, {Key: "k5", Value: 52}, {Key: "k6", Value: 62}}
	assert.Equal(t, expected, got)
}

func TestMultiHead_InvalidArguments(t *testing.T) {
	_, err := MultiHead[string, int](nil, []iter.Seq[utils.Pair[string, int]]{})
	assert.Error(t, err)
	_, err = MultiHead[string, int](cmp.Compare[string], nil)
	assert.Error(t, err)
}

func TestMergeKeys(t *testing.T) {
	for _, testCase := range []struct {
		name      string
		sequences [][]int
		expected  []int
	}{
		{
			name:      "disjoint",
			sequences: [][]int{{1, 4, 7}, {2, 5, 8}, {3, 6, 9}},
			expected:  []int{1, 2, 3, 4, 5, 6, 7, 8, 9},
		},
		{
			name:      "empty sequences are skipped",
			sequences: [][]int{{}, {2, 3}, {}},
			expected:  []int{2, 3},
		},
		{
			name:      "duplicates collapse",
			sequences: [][]int{{1, 2}, {1, 2}},
			expected:  []int{1, 2},
		},
		{
			name:      "all empty",
			sequences: [][]int{{}, {}},
			expected:  nil,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			sequences := make([]iter.Seq[int], 0, len(testCase.sequences))
			for _, seq := range testCase.sequences {
				sequences = append(sequences, slices.Values(seq))
			}
			merged, err := MergeKeys(cmp.Compare[int], sequences)
			assert.NoError(t, err)
			assert.Equal(t, testCase.expected, slices.Collect(merged))
		})
	}
}

func TestMergeKeys_EarlyStop(t *testing.T) {
	merged, err := MergeKeys(cmp.Compare[int], []iter.Seq[int]{slices.Values([]int{1, 3, 5}), slices.Values([]int{2, 4})})
	assert.NoError(t, err)
	var got []int
	for key := range merged {
		got = append(got, key)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}
