package verify

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// 文字记录配色
var (
	Success     = lipgloss.Color("#8BC34A")
	Destructive = lipgloss.Color("#e53935")
	Warning     = lipgloss.Color("#FFC107")
)

const ruleWidth = 80

// Transcript 输出人类可读的验证过程
//
// 样式按输出目标探测颜色能力，非终端时退化为纯文本。
type Transcript struct {
	w       io.Writer
	title   lipgloss.Style
	heading lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
}

// NewTranscript 创建写入 w 的文字记录
func NewTranscript(w io.Writer) *Transcript {
	r := lipgloss.NewRenderer(w)
	return &Transcript{
		w:       w,
		title:   r.NewStyle().Bold(true).Width(ruleWidth).Align(lipgloss.Center),
		heading: r.NewStyle().Bold(true),
		pass:    r.NewStyle().Foreground(Success),
		fail:    r.NewStyle().Foreground(Destructive),
		warn:    r.NewStyle().Foreground(Warning),
	}
}

func (t *Transcript) println(s string) {
	fmt.Fprintln(t.w, s)
}

func (t *Transcript) rule() {
	t.println(strings.Repeat("=", ruleWidth))
}

// Banner 输出开头标题
func (t *Transcript) Banner() {
	t.rule()
	t.println(t.title.Render("CONTEXT ENGINEERING LESSON"))
	t.println(t.title.Render("AUTO-VERIFICATION"))
	t.rule()
	t.println("")
}

// Check 输出检查标题
func (t *Transcript) Check(n int, title string) {
	t.println("")
	t.println(t.heading.Render(fmt.Sprintf("Check %d: %s", n, title)))
}

// Pass 输出通过行
func (t *Transcript) Pass(format string, args ...any) {
	t.println("   " + t.pass.Render("PASS: "+fmt.Sprintf(format, args...)))
}

// Fail 输出失败行
func (t *Transcript) Fail(format string, args ...any) {
	t.println("   " + t.fail.Render("FAIL: "+fmt.Sprintf(format, args...)))
}

// Warn 输出警告行
func (t *Transcript) Warn(format string, args ...any) {
	t.println("   " + t.warn.Render("WARNING: "+fmt.Sprintf(format, args...)))
}

// Info 输出普通说明行
func (t *Transcript) Info(format string, args ...any) {
	t.println("   " + fmt.Sprintf(format, args...))
}

// Critical 输出提前失败
func (t *Transcript) Critical(message string) {
	t.println("")
	t.println(t.fail.Render("CRITICAL ERROR: " + message))
	t.println("")
	t.rule()
	t.println(t.title.Render("VERIFICATION FAILED"))
	t.rule()
}

// Summary 输出最终结果
func (t *Transcript) Summary(v Verification, progressPath string) {
	t.println("")
	t.rule()
	t.println(t.title.Render("FINAL RESULTS"))
	t.rule()

	var failed, warnings int
	if v.ChecksDetails != nil {
		failed = len(v.ChecksDetails.Failed)
		warnings = len(v.ChecksDetails.Warnings)
	}
	t.println("")
	t.println(t.pass.Render(fmt.Sprintf("Checks Passed: %d/%d", v.ChecksPassed, v.ChecksTotal)))
	t.println(t.fail.Render(fmt.Sprintf("Checks Failed: %d/%d", failed, v.ChecksTotal)))
	t.println(t.warn.Render(fmt.Sprintf("Warnings: %d", warnings)))

	style := t.fail
	if v.Grade == StatusPass {
		style = t.pass
	}
	t.println("")
	t.println(style.Bold(true).Render("OVERALL GRADE: " + string(v.Grade)))
	t.println("")
	if v.Grade == StatusPass {
		t.println("Congratulations! You've successfully completed the Context Engineering lesson!")
		t.println("   Your completion certificate has been saved to " + progressPath)
	} else {
		t.println("Lesson not yet complete. Please address the failed checks above.")
		t.println("   Review the notebook and ensure all tasks are completed correctly.")
	}
	t.println("")
	t.rule()
}
