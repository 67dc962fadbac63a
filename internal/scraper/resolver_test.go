package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/lookaround/internal/browser"
	"github.com/v0xg/lookaround/internal/locator"
)

func labels(els []browser.Element) []string {
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = e.(*fakeNode).label
	}
	return out
}

func TestResolve(t *testing.T) {
	fs := &fakeSession{root: resultsPage()}
	r := NewResolver(fs)
	ctx := context.Background()

	el, err := r.Resolve(ctx, fs.root, locator.MustParsePath("id=results", "class=result-item", "tag=a"))
	require.NoError(t, err)
	assert.Equal(t, "a0", el.(*fakeNode).label)

	// deterministic against an unchanged document
	again, err := r.Resolve(ctx, fs.root, locator.MustParsePath("id=results", "class=result-item", "tag=a"))
	require.NoError(t, err)
	assert.Same(t, el, again)

	el, err = r.Resolve(ctx, fs.root, locator.MustParsePath("class=result-item[2]", "tag=a"))
	require.NoError(t, err)
	assert.Equal(t, "a2", el.(*fakeNode).label)
}

func TestResolveErrors(t *testing.T) {
	fs := &fakeSession{root: resultsPage()}
	r := NewResolver(fs)
	ctx := context.Background()

	_, err := r.Resolve(ctx, fs.root, locator.MustParsePath("id=results", "id=missing", "tag=a"))
	var locErr *LocatorError
	require.ErrorAs(t, err, &locErr)
	assert.Equal(t, NoMatch, locErr.Kind)
	assert.Equal(t, 1, locErr.Step)
	assert.Contains(t, err.Error(), "id=missing")

	_, err = r.Resolve(ctx, fs.root, locator.MustParsePath("class=result-item[3]"))
	require.ErrorAs(t, err, &locErr)
	assert.Equal(t, IndexOutOfRange, locErr.Kind)
	assert.Equal(t, 3, locErr.Index)
	assert.Equal(t, 3, locErr.Count)

	_, err = r.Resolve(ctx, fs.root, nil)
	assert.True(t, errors.Is(err, &locator.ConfigError{Kind: locator.MissingField}))
	_, err = r.ResolveAll(ctx, fs.root, locator.Path{})
	assert.True(t, errors.Is(err, &locator.ConfigError{Kind: locator.MissingField}))
}

func TestResolveAllIndexedIsRestriction(t *testing.T) {
	fs := &fakeSession{root: resultsPage()}
	r := NewResolver(fs)
	ctx := context.Background()

	all, err := r.ResolveAll(ctx, fs.root, locator.MustParsePath("id=results", "tag=a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1", "a2"}, labels(all))

	for k := range all {
		one, err := r.ResolveAll(ctx, fs.root, locator.Path{
			locator.MustParse("id=results"),
			locator.MustParse("tag=a").At(k),
		})
		require.NoError(t, err)
		require.Len(t, one, 1)
		assert.Same(t, all[k], one[0])
	}

	_, err = r.ResolveAll(ctx, fs.root, locator.MustParsePath("id=results", "tag=a[3]"))
	assert.True(t, errors.Is(err, &LocatorError{Kind: IndexOutOfRange}))
}

func TestResolveAllNoMatchIsEmpty(t *testing.T) {
	fs := &fakeSession{root: resultsPage()}
	all, err := NewResolver(fs).ResolveAll(context.Background(), fs.root, locator.MustParsePath("class=nothing"))
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestResolveStaleStart(t *testing.T) {
	fs := &fakeSession{root: resultsPage()}
	item := fs.root.kids[0].kids[0].kids[1]
	replace(item, node("li.result-item", node("a@new")))

	_, err := NewResolver(fs).Resolve(context.Background(), item, locator.MustParsePath("tag=a"))
	assert.ErrorIs(t, err, browser.ErrStale)
}

func TestReplayAfterRerender(t *testing.T) {
	fs := &fakeSession{root: resultsPage()}
	r := NewResolver(fs)
	ctx := context.Background()

	path := locator.MustParsePath("id=results", "class=result-item")
	lineage := locator.Root.Extend(path, 1).Extend(locator.MustParsePath("tag=a"), 0)
	want := locator.Path{
		locator.MustParse("id=results"),
		locator.MustParse("class=result-item[1]"),
		locator.MustParse("tag=a[0]"),
	}
	if diff := cmp.Diff(want, lineage.Path()); diff != "" {
		t.Fatalf("lineage mismatch (-want +got):\n%s", diff)
	}

	before, err := r.Replay(ctx, lineage)
	require.NoError(t, err)
	assert.Equal(t, "a1", before.(*fakeNode).label)

	// the whole document is rendered again
	fs.root = resultsPage()
	fs.root.kids[0].kids[0].kids[1].kids[0].label = "a1-rerendered"

	after, err := r.Replay(ctx, lineage)
	require.NoError(t, err)
	assert.Equal(t, "a1-rerendered", after.(*fakeNode).label)

	root, err := r.Replay(ctx, locator.Root)
	require.NoError(t, err)
	assert.Same(t, fs.root, root)
}
