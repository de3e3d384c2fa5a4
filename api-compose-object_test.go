package s3core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func composeSrc(bucket, object string, resolvedSize int64) *ComposeSource {
	return &ComposeSource{Bucket: bucket, Object: object, End: -1, resolvedSize: resolvedSize}
}

// TestPlanComposeSingleSmallSourceIsOneFragment matches spec.md §4.4: a
// single source under the split threshold takes the fast one-fragment
// path.
func TestPlanComposeSingleSmallSourceIsOneFragment(t *testing.T) {
	src := composeSrc("b", "o", 2048)
	fragments, err := planCompose([]*ComposeSource{src})
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	require.Equal(t, int64(0), fragments[0].start)
	require.Equal(t, int64(2047), fragments[0].end)
}

// TestPlanComposeRejectsUndersizedNonTerminalSource matches spec.md §4.4:
// every source but the last must contribute at least the 5 MiB minimum.
func TestPlanComposeRejectsUndersizedNonTerminalSource(t *testing.T) {
	small := composeSrc("b", "o1", 1024)
	last := composeSrc("b", "o2", 1024)
	_, err := planCompose([]*ComposeSource{small, last})
	require.Error(t, err)
}

// TestPlanComposeAllowsUndersizedTerminalSource matches spec.md §4.4: the
// final source is exempt from the 5 MiB minimum.
func TestPlanComposeAllowsUndersizedTerminalSource(t *testing.T) {
	first := composeSrc("b", "o1", minPartSize)
	last := composeSrc("b", "o2", 1024)
	fragments, err := planCompose([]*ComposeSource{first, last})
	require.NoError(t, err)
	require.Len(t, fragments, 2)
}

// TestPlanComposeRejectsSSEOnNonFirstSource matches spec.md §4.4:
// SSE-C/client metadata may only be carried on the first source.
func TestPlanComposeRejectsSSEOnNonFirstSource(t *testing.T) {
	first := composeSrc("b", "o1", minPartSize)
	second := composeSrc("b", "o2", minPartSize)
	second.SSE = SSE{Type: SSEC}
	_, err := planCompose([]*ComposeSource{first, second})
	require.Error(t, err)
}

// TestPlanComposeSplitsSourceAboveMaxPartSize matches spec.md §4.4: a
// source larger than the 5 GiB part cap is split into multiple fragments,
// each respecting both the max and (for non-terminal fragments) the
// minimum part size.
func TestPlanComposeSplitsSourceAboveMaxPartSize(t *testing.T) {
	size := int64(2*maxPartSize + 10*1024*1024)
	src := composeSrc("b", "o", size)
	fragments, err := planCompose([]*ComposeSource{src})
	require.NoError(t, err)
	require.Len(t, fragments, 3)

	require.Equal(t, int64(0), fragments[0].start)
	require.Equal(t, int64(maxPartSize-1), fragments[0].end)
	require.Equal(t, int64(maxPartSize), fragments[1].start)
	require.Equal(t, int64(2*maxPartSize-1), fragments[1].end)
	require.Equal(t, int64(2*maxPartSize), fragments[2].start)
	require.Equal(t, size-1, fragments[2].end)
}

// TestPlanComposeAvoidsUndersizedTrailingFragment matches spec.md §4.4: a
// split that would otherwise leave a final fragment under the 5 MiB
// minimum instead shrinks the second-to-last fragment to keep the tail at
// the minimum.
func TestPlanComposeAvoidsUndersizedTrailingFragment(t *testing.T) {
	size := int64(maxPartSize + 3*1024*1024)
	src := composeSrc("b", "o", size)
	fragments, err := planCompose([]*ComposeSource{src})
	require.NoError(t, err)
	require.Len(t, fragments, 2)

	firstLen := fragments[0].end - fragments[0].start + 1
	secondLen := fragments[1].end - fragments[1].start + 1
	require.Equal(t, int64(maxPartSize-2*1024*1024), firstLen)
	require.Equal(t, int64(minPartSize), secondLen)
	require.Equal(t, size-1, fragments[1].end)
}

// TestPlanComposeRejectsOversizedTotal matches spec.md §4.4: the combined
// contribution across all sources may not exceed the 5 TiB object cap.
func TestPlanComposeRejectsOversizedTotal(t *testing.T) {
	src := composeSrc("b", "o", maxObjectSize+1)
	_, err := planCompose([]*ComposeSource{src})
	require.Error(t, err)
}

// TestPlanComposeRejectsTooManyFragments matches spec.md §4.4: a compose
// that would require more than 10000 parts is rejected up front.
func TestPlanComposeRejectsTooManyFragments(t *testing.T) {
	sources := make([]*ComposeSource, maxMultipartCount+1)
	for i := range sources {
		sources[i] = composeSrc("b", "o", minPartSize)
	}
	_, err := planCompose(sources)
	require.Error(t, err)
}

// TestPlanComposeRejectsEmptySourceList matches spec.md §4.4: compose
// requires at least one source.
func TestPlanComposeRejectsEmptySourceList(t *testing.T) {
	_, err := planCompose(nil)
	require.Error(t, err)
}
