package cli

import (
	"bufio"
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pribylovaa/go-forum/internal/models"
	"github.com/pribylovaa/go-forum/internal/query"
	"github.com/pribylovaa/go-forum/internal/refresh"
	"github.com/pribylovaa/go-forum/internal/service"
)

// sessionCheckEvery — не реже этого сессия проверяется на истечение;
// должно быть меньше запаса, с которым auth обновляет токен заранее.
const sessionCheckEvery = 5 * time.Second

const watchHelp = "commands: like | dislike | comment <text> | reply <comment-id> <text> | refresh | quit"

// watchView — живой просмотр поста: комментарии и голоса перечитываются
// по расписанию, экран перерисовывается только при изменениях.
type watchView struct {
	app    *App
	postID int64
	post   *service.PostDetail

	mu       sync.Mutex
	thread   []*models.CommentNode
	tally    models.Tally
	loaded   bool
	rendered bool
	notice   string
	signedIn bool
}

// watch показывает пост и обновляет его до quit, конца ввода или отмены ctx.
func (a *App) watch(ctx context.Context, args []string) error {
	const op = "cli/watch"

	pos, err := parse(newFlags("watch"), args, 1)
	if err != nil {
		return err
	}

	postID, err := parseID("post id", pos[0])
	if err != nil {
		return err
	}

	fctx, fcancel := a.withTimeout(ctx)
	res, err := a.fetchPost(fctx, postID)
	fcancel()
	if err != nil {
		return err
	}
	if !res.Found {
		_, err := fmt.Fprintln(a.Out, "post not found")
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v := &watchView{app: a, postID: postID, post: res.Detail, tally: res.Detail.Tally}
	if a.Session != nil {
		v.signedIn = a.Session.Current() != nil
	}

	sched := refresh.New(a.Logger)
	if err := sched.Every("comments", a.RefreshInterval, v.pollComments); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := sched.Every("votes", a.RefreshInterval, v.pollVotes); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if a.Auth != nil {
		if err := sched.Every("session", min(a.RefreshInterval, sessionCheckEvery), v.pollSession); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	sched.Start(ctx)
	defer sched.Stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.In)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := v.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

func (v *watchView) pollComments(ctx context.Context) error {
	ctx, cancel := v.app.withTimeout(ctx)
	defer cancel()

	key := query.NewKey(kindComments, v.postID)
	v.app.Cache.Invalidate(key)

	thread, err := v.app.fetchThread(ctx, v.postID)
	if err != nil {
		v.setNotice("error: " + describe(err))
		v.render()
		return err
	}

	v.mu.Lock()
	changed := !v.loaded || !reflect.DeepEqual(thread, v.thread)
	v.thread = thread
	v.loaded = true
	v.mu.Unlock()

	if changed {
		v.render()
	}
	return nil
}

func (v *watchView) pollVotes(ctx context.Context) error {
	ctx, cancel := v.app.withTimeout(ctx)
	defer cancel()

	v.app.Cache.Invalidate(query.NewKey(kindTally, v.postID))

	tally, err := v.app.fetchTally(ctx, v.postID)
	if err != nil {
		v.setNotice("error: " + describe(err))
		v.render()
		return err
	}

	v.mu.Lock()
	changed := tally != v.tally
	v.tally = tally
	v.mu.Unlock()

	if changed {
		v.render()
	}
	return nil
}

// pollSession продлевает сессию до истечения access-токена. Если провайдер
// отклонил обновление, сессия сбрасывается, и просмотр сообщает об этом.
func (v *watchView) pollSession(ctx context.Context) error {
	ctx, cancel := v.app.withTimeout(ctx)
	defer cancel()

	s, err := v.app.Auth.Session(ctx)
	if err != nil {
		v.setNotice("error: " + describe(err))
		v.render()
		return err
	}

	v.mu.Lock()
	lost := v.signedIn && s == nil
	v.signedIn = s != nil
	v.mu.Unlock()

	if lost {
		v.setNotice("session expired, run `forum login` to vote or comment")
		v.render()
	}
	return nil
}

// handle выполняет введённую команду; true — выйти из просмотра.
func (v *watchView) handle(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "":
		return false
	case "quit", "q", "exit":
		return true
	case "help", "?":
		v.setNotice(watchHelp)
	case "like", "up":
		v.doVote(ctx, models.VoteLike)
	case "dislike", "down":
		v.doVote(ctx, models.VoteDislike)
	case "comment":
		v.doComment(ctx, nil, rest)
	case "reply":
		idStr, text, _ := strings.Cut(rest, " ")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			v.setNotice("usage: reply <comment-id> <text>")
			break
		}
		v.doComment(ctx, &id, text)
	case "refresh":
		_ = v.pollComments(ctx)
		_ = v.pollVotes(ctx)
		return false
	default:
		v.setNotice(fmt.Sprintf("unknown command %q; %s", cmd, watchHelp))
	}

	v.render()
	return false
}

func (v *watchView) doVote(ctx context.Context, value int) {
	ctx, cancel := v.app.withTimeout(ctx)
	defer cancel()

	state, err := v.app.castVote(ctx, v.postID, value)
	if err != nil {
		v.setNotice("error: " + describe(err))
		return
	}

	v.setNotice("your vote: " + state.String())
	_ = v.pollVotes(ctx)
}

func (v *watchView) doComment(ctx context.Context, parentID *int64, text string) {
	ctx, cancel := v.app.withTimeout(ctx)
	defer cancel()

	c, err := v.app.addComment(ctx, v.postID, parentID, text)
	if err != nil {
		v.setNotice("error: " + describe(err))
		return
	}

	v.setNotice(fmt.Sprintf("comment #%d added", c.ID))
	_ = v.pollComments(ctx)
}

func (v *watchView) setNotice(s string) {
	v.mu.Lock()
	v.notice = s
	v.mu.Unlock()
}

// render печатает пост, голоса, дерево комментариев и последнее сообщение.
func (v *watchView) render() {
	v.mu.Lock()
	defer v.mu.Unlock()

	w := v.app.Out
	if v.rendered {
		fmt.Fprintln(w, dimColor.Sprintf("──── updated %s ────", time.Now().Format("15:04:05")))
	}
	v.rendered = true

	d := *v.post
	d.Tally = v.tally
	renderPost(w, &d)
	fmt.Fprintln(w)
	renderThread(w, v.thread)

	if v.notice != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, v.notice)
		v.notice = ""
	}
	fmt.Fprintln(w, dimColor.Sprint(watchHelp))
}
