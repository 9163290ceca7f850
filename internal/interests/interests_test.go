package interests

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTopicsStripsStopWordsAndShortTokens(t *testing.T) {
	topics := ExtractTopics("I think the database is really slow today")
	require.Contains(t, topics, "database")
	require.NotContains(t, topics, "the")
	require.NotContains(t, topics, "slow") // length 4, not > 4
}

func TestExtractTopicsFormsAdjacentBigrams(t *testing.T) {
	topics := ExtractTopics("quantum entanglement research project")
	require.Contains(t, topics, "quantum entanglement")
	require.Contains(t, topics, "entanglement research")
}

func TestExtractTopicsDedupes(t *testing.T) {
	topics := ExtractTopics("python python python")
	count := 0
	for _, topic := range topics {
		if topic == "python" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestClassifyDomainProgramming(t *testing.T) {
	require.Equal(t, "programming", ClassifyDomain("why does this function throw an error"))
}

func TestClassifyDomainPhilosophy(t *testing.T) {
	require.Equal(t, "philosophy", ClassifyDomain("what is the nature of consciousness"))
}

func TestClassifyDomainFirstMatchWins(t *testing.T) {
	// This message matches both programming ("code") and practical ("fix");
	// programming comes first in the domain table, so it wins.
	require.Equal(t, "programming", ClassifyDomain("can you fix this code"))
}

func TestClassifyDomainNoMatchReturnsEmpty(t *testing.T) {
	require.Equal(t, "", ClassifyDomain("hello there"))
}
