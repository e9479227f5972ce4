package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-forum/internal/models"
)

func ptr(v int64) *int64 { return &v }

func comment(id int64, parent *int64) models.Comment {
	return models.Comment{ID: id, PostID: 1, ParentID: parent, Content: "c"}
}

// ids — обход дерева в глубину, чтобы сравнивать структуру компактно.
func ids(nodes []*models.CommentNode) []int64 {
	var out []int64
	var walk func([]*models.CommentNode)
	walk = func(ns []*models.CommentNode) {
		for _, n := range ns {
			out = append(out, n.ID)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

func TestBuildTree_Empty(t *testing.T) {
	t.Parallel()

	roots := BuildTree(nil)
	require.NotNil(t, roots)
	require.Empty(t, roots)
}

func TestBuildTree_Nested(t *testing.T) {
	t.Parallel()

	roots := BuildTree([]models.Comment{
		comment(1, nil),
		comment(2, ptr(1)),
		comment(3, ptr(2)),
		comment(4, nil),
		comment(5, ptr(1)),
	})

	require.Len(t, roots, 2)
	require.Equal(t, int64(1), roots[0].ID)
	require.Equal(t, int64(4), roots[1].ID)

	require.Len(t, roots[0].Children, 2)
	require.Equal(t, int64(2), roots[0].Children[0].ID)
	require.Equal(t, int64(5), roots[0].Children[1].ID)
	require.Equal(t, int64(3), roots[0].Children[0].Children[0].ID)

	require.NotNil(t, roots[1].Children)
	require.Empty(t, roots[1].Children)
}

func TestBuildTree_ChildBeforeParent(t *testing.T) {
	t.Parallel()

	roots := BuildTree([]models.Comment{
		comment(2, ptr(1)),
		comment(1, nil),
	})

	require.Len(t, roots, 1)
	require.Equal(t, []int64{1, 2}, ids(roots))
}

func TestBuildTree_MissingParentBecomesRoot(t *testing.T) {
	t.Parallel()

	roots := BuildTree([]models.Comment{
		comment(1, nil),
		comment(2, ptr(99)),
	})

	require.Len(t, roots, 2)
	require.Equal(t, []int64{1, 2}, ids(roots))
}

func TestBuildTree_SelfParentBecomesRoot(t *testing.T) {
	t.Parallel()

	roots := BuildTree([]models.Comment{comment(7, ptr(7))})

	require.Len(t, roots, 1)
	require.Equal(t, int64(7), roots[0].ID)
	require.Empty(t, roots[0].Children)
}

func TestBuildTree_CycleKeepsEveryCommentOnce(t *testing.T) {
	t.Parallel()

	roots := BuildTree([]models.Comment{
		comment(1, ptr(3)),
		comment(2, ptr(1)),
		comment(3, ptr(2)),
		comment(4, ptr(2)),
		comment(5, nil),
	})

	require.Len(t, roots, 2)
	require.Equal(t, int64(1), roots[0].ID)
	require.Equal(t, int64(5), roots[1].ID)
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, ids(roots))
	require.Len(t, ids(roots), 5)
}

func TestBuildTree_DuplicateIDs(t *testing.T) {
	t.Parallel()

	roots := BuildTree([]models.Comment{
		comment(1, nil),
		comment(1, nil),
		comment(2, ptr(1)),
	})

	require.Len(t, roots, 2)
	require.Len(t, roots[0].Children, 1)
	require.Empty(t, roots[1].Children)
	require.Len(t, ids(roots), 3)
}
