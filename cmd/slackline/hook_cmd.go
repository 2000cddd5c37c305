package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/tcopeland/slackline/internal/config"
	"github.com/tcopeland/slackline/internal/escalation"
	"github.com/tcopeland/slackline/internal/logging"
	"github.com/tcopeland/slackline/internal/question"
	"github.com/tcopeland/slackline/internal/slackio"
)

var hookLog = logging.ForComponent(logging.CompHook)

// hookPayload represents the JSON payload the agent host sends to hooks via
// stdin. Only the fields we need are decoded; unknown fields are ignored.
type hookPayload struct {
	SessionID string `json:"session_id"`
	ToolInput struct {
		Questions []question.Question `json:"questions"`
	} `json:"tool_input"`
}

// hookDecision is the allow/deny output the host reads from stdout.
type hookDecision struct {
	HookSpecificOutput hookSpecificOutput `json:"hookSpecificOutput"`
}

type hookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// handleHook dispatches the "hook" subcommand. Hook handlers always exit 0;
// a failing hook must never block the agent.
func handleHook(cfg *config.Config, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: slackline hook <pre|post>")
		os.Exit(1)
	}

	switch args[0] {
	case "pre":
		handlePreHook(cfg)
	case "post":
		handlePostHook()
	default:
		fmt.Fprintf(os.Stderr, "Unknown hook event: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: slackline hook <pre|post>")
		os.Exit(1)
	}
}

// handlePreHook intercepts the agent's question tool call: post the question
// to Slack, start the background watcher, and deny the native prompt with
// instructions that set up the terminal-vs-Slack reply race.
//
// Fail-open: malformed input, a missing question list, or store errors all
// emit an allow decision so the agent's native prompt still works.
func handlePreHook(cfg *config.Config) {
	payload, err := readHookPayload(os.Stdin)
	if err != nil {
		hookLog.Warn("bad_hook_payload", slog.String("error", err.Error()))
		emitAllow()
		return
	}
	questions := payload.ToolInput.Questions
	if len(questions) == 0 {
		emitAllow()
		return
	}

	questionID := escalation.SanitizeQuestionID(payload.SessionID)
	store, err := escalation.NewStore(config.QuestionsDir())
	if err != nil {
		hookLog.Error("store_unavailable", slog.String("error", err.Error()))
		emitAllow()
		return
	}

	// Clear artifacts from a previous question in the same agent session.
	store.StopWatcher(questionID)
	store.Clean(questionID)

	threadTS := postQuestion(cfg, questions)

	meta := &escalation.Meta{
		QuestionID: questionID,
		ChannelID:  cfg.Slack.ChannelID,
		ThreadTS:   threadTS,
		BaselineTS: slackio.ParseTS(threadTS),
		LastSeenTS: slackio.ParseTS(threadTS),
		Questions:  questions,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.SaveMeta(meta); err != nil {
		hookLog.Error("meta_save_failed", slog.String("question", questionID), slog.String("error", err.Error()))
		emitAllow()
		return
	}

	if threadTS != "" {
		spawnWatcher(store, questionID)
	}

	emitDeny(buildDenyReason(store, questionID, questions, threadTS, cfg.Watch.WaitTimeoutSecs))
}

// postQuestion posts the formatted question to Slack and returns the thread
// timestamp, or "" when Slack is unavailable (missing config or post failure).
// A post failure is reported, not retried.
func postQuestion(cfg *config.Config, questions []question.Question) string {
	if err := cfg.ValidateSlack(); err != nil {
		hookLog.Warn("slack_not_configured", slog.String("error", err.Error()))
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	chat := slackio.New(cfg.Slack)
	chat.JoinChannel(ctx)

	ts, err := chat.Post(ctx, question.FormatSlack(questions))
	if err != nil {
		hookLog.Warn("question_post_failed", slog.String("error", err.Error()))
		return ""
	}
	hookLog.Info("question_posted", slog.String("thread_ts", ts))
	return ts
}

// spawnWatcher starts `slackline watch` as a detached background process and
// records its pid for cleanup by the post hook.
func spawnWatcher(store *escalation.Store, questionID string) {
	exe, err := os.Executable()
	if err != nil {
		hookLog.Error("executable_lookup_failed", slog.String("error", err.Error()))
		return
	}

	cmd := exec.Command(exe, "watch", "--question-id", questionID)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		hookLog.Error("watcher_spawn_failed", slog.String("question", questionID), slog.String("error", err.Error()))
		return
	}

	pid := cmd.Process.Pid
	if err := store.WritePID(questionID, pid); err != nil {
		hookLog.Warn("pid_write_failed", slog.String("question", questionID), slog.String("error", err.Error()))
	}
	_ = cmd.Process.Release()
	hookLog.Info("watcher_spawned", slog.String("question", questionID), slog.Int("pid", pid))
}

// handlePostHook stops the watcher and removes the question artifacts.
// PostToolUse expects no decision output.
func handlePostHook() {
	payload, err := readHookPayload(os.Stdin)
	if err != nil {
		return
	}
	questionID := escalation.SanitizeQuestionID(payload.SessionID)

	store, err := escalation.NewStore(config.QuestionsDir())
	if err != nil {
		return
	}
	store.StopWatcher(questionID)
	store.Clean(questionID)
}

func readHookPayload(r io.Reader) (*hookPayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty hook payload")
	}
	var payload hookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// buildDenyReason assembles the instructions the agent receives instead of
// its native prompt: print the question, race a background wait command
// against terminal input, and honor whichever answers first.
func buildDenyReason(store *escalation.Store, questionID string, questions []question.Question, threadTS string, waitTimeoutSecs int) string {
	terminalBlock := question.FormatTerminal(questions)

	if threadTS == "" {
		return strings.Join([]string{
			"IMPORTANT: Do not call this question tool again. Follow these steps exactly:",
			"",
			"STEP 1: Display this question to the user as plain text:",
			"---",
			terminalBlock,
			"---",
			"",
			"STEP 2: Wait for the user's next terminal message as their answer.",
			"(Slack is unavailable for this question.)",
		}, "\n")
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "slackline"
	}
	waitCmd := fmt.Sprintf("%s wait --question-id %s --timeout %d", exe, questionID, waitTimeoutSecs)

	return strings.Join([]string{
		"IMPORTANT: Do not call this question tool again. Follow these steps exactly:",
		"",
		"STEP 1: Display this question to the user as plain text:",
		"---",
		terminalBlock,
		"---",
		"(The user can reply in the terminal OR on Slack.)",
		"",
		"STEP 2: Start this command with the Bash tool as a BACKGROUND task (DO NOT block):",
		"Command: " + waitCmd,
		"Bash tool arguments must include: run_in_background=true",
		"Store the returned background task id so you can read or stop it later.",
		"",
		"STEP 3: While that background task runs, wait for the user's next terminal message.",
		"This is a race between terminal input and a Slack reply.",
		"",
		"STEP 4: If the background task finishes first:",
		"- Read its output.",
		"- If output is `SLACK_ANSWER: <answer>`, use that answer and continue.",
		"- If output is `NO_ANSWER`, continue waiting for terminal input.",
		"",
		"STEP 5: If terminal input arrives first:",
		"- Use the terminal message as the user's answer.",
		"- Stop/kill the background wait task (if still running).",
		"- Continue.",
		"",
		"STEP 6: Before processing ANY subsequent user message, check for a late Slack answer first:",
		fmt.Sprintf("`cat %s 2>/dev/null`", store.AnswerPath(questionID)),
		"If the file contains text, that Slack answer overrides and should be used.",
	}, "\n")
}

func emitAllow() {
	writeDecision(hookDecision{
		HookSpecificOutput: hookSpecificOutput{
			HookEventName:      "PreToolUse",
			PermissionDecision: "allow",
		},
	})
}

func emitDeny(reason string) {
	writeDecision(hookDecision{
		HookSpecificOutput: hookSpecificOutput{
			HookEventName:            "PreToolUse",
			PermissionDecision:       "deny",
			PermissionDecisionReason: reason,
		},
	})
}

func writeDecision(d hookDecision) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(d); err != nil {
		hookLog.Error("decision_write_failed", slog.String("error", err.Error()))
	}
}
