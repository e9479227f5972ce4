package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/service"
)

const timeLayout = "2006-01-02 15:04"

var (
	headerColor  = color.New(color.Bold)
	likeColor    = color.New(color.FgGreen)
	dislikeColor = color.New(color.FgRed)
	authorColor  = color.New(color.FgCyan)
	dimColor     = color.New(color.Faint)
)

// writeJSON печатает v как JSON с отступами.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderPosts(w io.Writer, posts []models.Post) error {
	if len(posts) == 0 {
		_, err := fmt.Fprintln(w, "no posts yet")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tLIKES\tCOMMENTS\tCOMMUNITY\tCREATED")
	for _, p := range posts {
		community := "-"
		switch {
		case p.CommunityName != "":
			community = p.CommunityName
		case p.CommunityID != nil:
			community = fmt.Sprintf("#%d", *p.CommunityID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			p.ID, truncate(p.Title, 48), p.LikeCount, p.CommentCount, community, formatTime(p.CreatedAt))
	}

	return tw.Flush()
}

func renderCommunities(w io.Writer, list []models.Community) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no communities yet")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION\tCREATED")
	for _, c := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Name, truncate(c.Description, 60), formatTime(c.CreatedAt))
	}

	return tw.Flush()
}

func renderPost(w io.Writer, d *service.PostDetail) {
	p := d.Post
	fmt.Fprintln(w, headerColor.Sprintf("#%d %s", p.ID, p.Title))
	fmt.Fprintln(w, dimColor.Sprint(formatTime(p.CreatedAt)))
	if p.ImageURL != "" {
		fmt.Fprintln(w, "image:", p.ImageURL)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.Content)
	fmt.Fprintln(w)
	renderTally(w, d.Tally)
}

func renderTally(w io.Writer, t models.Tally) {
	fmt.Fprintf(w, "%s  %s  you: %s\n",
		likeColor.Sprintf("▲ %d", t.Likes),
		dislikeColor.Sprintf("▼ %d", t.Dislikes),
		stateLabel(service.StateOf(t.Own)))
}

func stateLabel(s models.VoteState) string {
	switch s {
	case models.Liked:
		return likeColor.Sprint(s.String())
	case models.Disliked:
		return dislikeColor.Sprint(s.String())
	default:
		return s.String()
	}
}

// renderThread печатает дерево комментариев с отступом на каждый уровень.
func renderThread(w io.Writer, roots []*models.CommentNode) {
	if len(roots) == 0 {
		fmt.Fprintln(w, "no comments yet")
		return
	}

	var walk func(nodes []*models.CommentNode, depth int)
	walk = func(nodes []*models.CommentNode, depth int) {
		indent := strings.Repeat("  ", depth)
		for _, n := range nodes {
			fmt.Fprintf(w, "%s%s %s %s\n", indent,
				dimColor.Sprintf("[%d]", n.ID), authorColor.Sprint(n.Author), dimColor.Sprint(formatTime(n.CreatedAt)))
			for _, line := range strings.Split(n.Content, "\n") {
				fmt.Fprintf(w, "%s  %s\n", indent, line)
			}
			walk(n.Children, depth+1)
		}
	}
	walk(roots, 0)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
