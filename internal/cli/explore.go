package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/learnmap"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/navigation"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/session"
)

var (
	exploreSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	exploreNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	exploreContentStyle  = lipgloss.NewStyle().Foreground(colorWhite).PaddingLeft(2)
	exploreInputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorCyan).Padding(0, 1)
)

// exploreCommand creates the interactive terminal explorer.
func (c *CLI) exploreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explore <subject>",
		Short: "Explore a learning map in the terminal",
		Long: `Explore a learning map interactively.

The active article is shown with its follow-up questions. Selecting a
question generates the next article in the background; you can keep
navigating while it is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplore(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) runExplore(ctx context.Context, subject string) error {
	sess, closeSession, err := c.openSession(ctx, subject, false)
	if err != nil {
		return err
	}
	defer closeSession()

	updates := make(chan projection.Visualization, 1)
	stop := sess.Subscribe(func(vis projection.Visualization) { offerLatest(updates, vis) })
	defer stop()

	m := newExploreModel(ctx, sess, updates)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// offerLatest sends v without blocking, replacing an unread value.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

type visMsg projection.Visualization

func waitForVisualization(ch <-chan projection.Visualization) tea.Cmd {
	return func() tea.Msg { return visMsg(<-ch) }
}

// exploreModel is the bubbletea model of the explorer. It renders the active
// Article and lets the learner pick, ask and retry questions.
type exploreModel struct {
	ctx     context.Context
	sess    *session.Session
	updates <-chan projection.Visualization

	vis    projection.Visualization
	cursor int

	asking bool
	input  []rune

	status    string
	statusErr bool

	width, height int
}

func newExploreModel(ctx context.Context, sess *session.Session, updates <-chan projection.Visualization) exploreModel {
	return exploreModel{
		ctx:     ctx,
		sess:    sess,
		updates: updates,
		vis:     sess.Visualization(),
		width:   80,
		height:  24,
	}
}

func (m exploreModel) Init() tea.Cmd {
	return waitForVisualization(m.updates)
}

func (m exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case visMsg:
		m.vis = projection.Visualization(msg)
		m.cursor = min(m.cursor, max(len(m.questions())-1, 0))
		return m, waitForVisualization(m.updates)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		if m.asking {
			return m.updateAsking(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m exploreModel) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.sess.Controller()
	qs := m.questions()

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(qs)-1 {
			m.cursor++
		}
	case "enter", "right", "l":
		if len(qs) == 0 {
			return m, nil
		}
		m = m.result(ctrl.Dispatch(m.ctx, navigation.Event{Type: navigation.SelectQuestionEvent, ID: qs[m.cursor].ID}), "")
		m.cursor = 0
	case "left", "h", "backspace":
		q, ok := m.sess.Graph().QuestionLeadingTo(ctrl.Active())
		if !ok {
			return m.result(nil, "Already at the start"), nil
		}
		ctrl.SelectArticle(q.ArticleID)
		m.cursor = 0
	case "g":
		if root, ok := m.sess.Graph().RootArticle(); ok {
			ctrl.SelectArticle(root.ID)
			m.cursor = 0
		}
	case "r":
		m = m.result(ctrl.Retry(m.ctx, ctrl.Active()), "Retrying")
	case "a":
		m.asking = true
		m.input = m.input[:0]
	}
	m.vis = m.sess.Visualization()
	return m, nil
}

func (m exploreModel) updateAsking(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.asking = false
	case tea.KeyEnter:
		text := strings.TrimSpace(string(m.input))
		m.asking = false
		if text == "" {
			return m, nil
		}
		_, err := m.sess.Controller().AskQuestion(m.ctx, m.sess.Controller().Active(), text)
		m = m.result(err, "")
		m.cursor = 0
		m.vis = m.sess.Visualization()
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m exploreModel) result(err error, ok string) exploreModel {
	m.statusErr = err != nil
	m.status = ok
	if err != nil {
		m.status = err.Error()
	}
	return m
}

// questions returns the questions of the active Article in insertion order.
func (m exploreModel) questions() []learnmap.Question {
	return m.sess.Graph().QuestionsForArticle(m.sess.Controller().Active())
}

func (m exploreModel) View() string {
	var b strings.Builder
	active, _ := m.sess.Graph().Article(m.sess.Controller().Active())
	node, _ := m.vis.Node(active.ID)

	title := node.Label
	if title == "" {
		title = m.sess.Subject()
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n\n")

	width := max(m.width-4, 20)
	switch {
	case node.IsLoading:
		b.WriteString(StyleWarning.Render("  " + iconPending + " Generating article..."))
		b.WriteString("\n")
	case active.Failed():
		b.WriteString(StyleError.Render("  " + iconError + " " + active.GenerationError))
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("  press r to retry"))
		b.WriteString("\n")
	default:
		b.WriteString(exploreContentStyle.Width(width).Render(m.clip(active.Content)))
		b.WriteString("\n")
		for _, t := range active.Takeaways {
			b.WriteString(StyleSuccess.Render("  " + iconSuccess + " " + t))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	qs := m.questions()
	if len(qs) > 0 {
		b.WriteString(styleHeader.Render("Questions"))
		b.WriteString("\n")
	}
	for i, q := range qs {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		marker := StyleDim.Render(iconInfo)
		if n, _ := m.vis.Node(q.ID); n.IsLoading {
			marker = StyleWarning.Render(iconPending)
		} else if q.Answered() {
			marker = StyleSuccess.Render(iconSuccess)
		}
		line := fmt.Sprintf("%s%s %s", cursor, marker, q.Text)
		if i == m.cursor {
			b.WriteString(exploreSelectedStyle.Render(line))
		} else {
			b.WriteString(exploreNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.asking {
		b.WriteString("\n")
		b.WriteString(exploreInputStyle.Width(width).Render("Ask: " + string(m.input) + "█"))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.statusErr {
			b.WriteString(StyleError.Render(m.status))
		} else {
			b.WriteString(StyleDim.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(StyleDim.Render("↑/↓ choose  ⏎ open  ← back  g start  a ask  r retry  q quit"))
	return b.String()
}

// clip keeps the article short enough to leave room for the questions.
func (m exploreModel) clip(content string) string {
	lines := strings.Split(content, "\n")
	limit := max(m.height-12, 4)
	if len(lines) <= limit {
		return content
	}
	return strings.Join(lines[:limit], "\n") + "\n" + StyleDim.Render(iconPending)
}
