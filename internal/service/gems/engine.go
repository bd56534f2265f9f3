package gems

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/kaiwa-ai/gemrack/internal/model"
	"github.com/kaiwa-ai/gemrack/internal/storage"
	"github.com/kaiwa-ai/gemrack/internal/telemetry"
)

// Generator is the generative backend the engine executes AI gems
// against. A nil Generator disables AI gems with a configuration hint;
// static gems keep working.
type Generator interface {
	// GenerateText runs a text generation with an optional response MIME
	// hint ("" lets the model pick).
	GenerateText(ctx context.Context, systemInstruction, userText, responseMIMEType string) (string, error)

	// GenerateImage returns raw image bytes and their MIME type.
	GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error)
}

// Uploader delivers generated images back into the chat platform.
type Uploader interface {
	UploadFile(ctx context.Context, channelID, filename string, data []byte, title string) error
	OpenDirectMessage(ctx context.Context, userID string) (string, error)
}

// recorder is the write-only slice of the metrics surface the engine needs.
type recorder interface {
	RecordGemRun(ctx context.Context, run model.GemRun) error
}

// Request is one parsed inbound command.
type Request struct {
	WorkspaceID string
	UserID      string
	ChannelID   string
	Text        string

	// Uploader is optional; without it the image path reports generation
	// success with a delivery hint instead of uploading.
	Uploader Uploader
}

// Result is the engine's answer to a command. Public requests broadcast
// to the channel; a failed result is never broadcast.
type Result struct {
	OK      bool
	Message string
	Public  bool
}

// ModalRequest tells the caller to collect multi-line input via a modal
// before executing the named gem.
type ModalRequest struct {
	GemName string
	Public  bool
}

// Outcome is either a Result or a signal to open an input modal.
type Outcome struct {
	Result Result
	Modal  *ModalRequest
}

// Engine parses gem commands and orchestrates store, pipeline and
// generator calls. Collaborators are injected once at construction; the
// engine itself is stateless and safe for concurrent use.
type Engine struct {
	store    storage.GemStore
	recorder recorder
	gen      Generator
	logger   *slog.Logger
}

func NewEngine(store storage.GemStore, rec recorder, gen Generator, logger *slog.Logger) *Engine {
	return &Engine{store: store, recorder: rec, gen: gen, logger: logger}
}

const helpText = "Usage:\n" +
	"- `/gem create <name> [--summary \"...\"] [--system \"...\"] [--input <format>] [--output <format>] [body...]` — create or update a gem\n" +
	"- `/gem <name> [input...]` or `/gem run <name> [input...]` — run a gem\n" +
	"- `/gem list` — list gems\n" +
	"- `/gem show <name>` — show a gem's full definition\n" +
	"- `/gem delete <name>` — delete a gem\n" +
	"\n" +
	"Add `--public` (or `-p`) to post a run result to the channel instead of only to you.\n" +
	"Input formats: `free_text`, `bullet_points`, `json`, `url_list`, `slack_thread_url`\n" +
	"Output formats: `plain_text`, `markdown`, `json`, `marp_markdown`, `image_url`"

// Handle classifies and executes one raw command string. Expected user
// problems (bad names, missing input, not-found) come back as failed
// Results, never as errors; store and generator failures are rendered
// with remediation hints.
func (e *Engine) Handle(ctx context.Context, req Request) Outcome {
	raw := strings.TrimSpace(req.Text)
	tokens, public := stripPublicFlag(lexTokens(raw))
	if len(tokens) == 0 {
		return resultOutcome(Result{OK: true, Message: helpText})
	}

	switch sub := strings.ToLower(tokens[0]); sub {
	case "help", "-h", "--help":
		return resultOutcome(Result{OK: true, Message: helpText})
	case "create", "set":
		return resultOutcome(e.handleCreate(ctx, req, tokens))
	case "run", "exec":
		if len(tokens) < 2 {
			return failOutcome("Pass a gem name: `/gem run <name> [input...]`.")
		}
		return e.handleRun(ctx, req, tokens[1], rawAfterFields(raw, 2), public)
	case "list":
		return resultOutcome(e.handleList(ctx, req))
	case "show", "info":
		return resultOutcome(e.handleShow(ctx, req, tokens))
	case "delete", "del", "rm":
		return resultOutcome(e.handleDelete(ctx, req, tokens))
	default:
		if _, err := model.ValidateName(sub); err == nil {
			// Bare identifier shortcut: `/gem <name> [input...]`.
			return e.handleRun(ctx, req, sub, rawAfterFields(raw, 1), public)
		}
		return failOutcome("Unknown subcommand `" + tokens[0] + "`.\n\n" + helpText)
	}
}

func (e *Engine) handleCreate(ctx context.Context, req Request, tokens []string) Result {
	if len(tokens) < 3 {
		return fail("Usage: `/gem create <name> [--summary \"...\"] [--system \"...\"] [--input <format>] [--output <format>] [body...]`")
	}
	name, err := model.ValidateName(tokens[1])
	if err != nil {
		return fail(invalidNameMessage(tokens[1]))
	}

	params := model.GemUpsert{
		WorkspaceID:  req.WorkspaceID,
		Name:         name,
		InputFormat:  model.InputFree,
		OutputFormat: model.OutputMarkdown,
	}
	if req.UserID != "" {
		uid := req.UserID
		params.CreatedBy = &uid
	}

	var body []string
	aiMeta := false
	for i := 2; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "--summary", "--system", "--input", "--output":
			if i+1 >= len(tokens) {
				return fail("The `" + tok + "` flag needs a value.")
			}
			i++
			v := tokens[i]
			switch tok {
			case "--summary":
				params.Summary = v
			case "--system":
				params.SystemPrompt = v
				aiMeta = true
			case "--input":
				if !knownInputFormat(v) {
					return fail("Unknown input format `" + v + "`. Choose one of: `" + strings.Join(InputFormatIDs(), "`, `") + "`.")
				}
				params.InputFormat = v
				aiMeta = true
			case "--output":
				if !knownOutputFormat(v) {
					return fail("Unknown output format `" + v + "`. Choose one of: `" + strings.Join(OutputFormatIDs(), "`, `") + "`.")
				}
				params.OutputFormat = v
				aiMeta = true
			}
		default:
			body = append(body, tok)
		}
	}
	params.Body = strings.Join(body, " ")

	if _, err := e.store.Upsert(ctx, params); err != nil {
		return e.storeFailure("upsert gem", err)
	}
	if aiMeta {
		return Result{OK: true, Message: fmt.Sprintf("Gem `%s` saved. See `/gem show %s` for the full definition.", name, name)}
	}
	return Result{OK: true, Message: fmt.Sprintf("Gem `%s` saved. Run it with `/gem %s`.", name, name)}
}

func (e *Engine) handleRun(ctx context.Context, req Request, rawName, input string, public bool) Outcome {
	name, err := model.ValidateName(rawName)
	if err != nil {
		return failOutcome(invalidNameMessage(rawName))
	}

	gem, err := e.store.Get(ctx, req.WorkspaceID, name)
	if err == storage.ErrNotFound {
		return failOutcome(fmt.Sprintf("Gem `%s` was not found. Try `/gem list`.", name))
	}
	if err != nil {
		return resultOutcome(e.storeFailure("get gem", err))
	}
	if !gem.Enabled {
		return failOutcome(fmt.Sprintf("Gem `%s` is disabled. An administrator can re-enable it.", name))
	}

	if gem.Static() {
		e.record(ctx, req, name, public, true)
		return resultOutcome(Result{OK: true, Message: gem.Body, Public: public})
	}

	// AI gems need input; a slash command line cannot carry newlines, so
	// an empty input defers to a multi-line modal instead of failing.
	if strings.TrimSpace(input) == "" {
		return Outcome{Modal: &ModalRequest{GemName: name, Public: public}}
	}

	var res Result
	if gem.OutputFormat == model.OutputImageURL {
		res = e.runImage(ctx, req, gem, input, public)
	} else {
		res = e.runText(ctx, gem, input, public)
	}
	e.record(ctx, req, name, res.Public, res.OK)
	return resultOutcome(res)
}

func (e *Engine) runText(ctx context.Context, gem model.Gem, input string, public bool) Result {
	if e.gen == nil {
		return fail(generatorMissingMessage)
	}
	prepared, err := prepareInput(gem.InputFormat, input)
	if err != nil {
		return fail(err.Error())
	}
	system := strings.TrimSpace(gem.SystemPrompt)
	if system == "" {
		system = defaultSystemPrompt
	}
	out, err := e.gen.GenerateText(ctx, system, buildInstruction(gem, prepared), responseMIMEType(gem.OutputFormat))
	if err != nil {
		e.logger.Warn("text generation failed", "gem", gem.Name, "error", err)
		return fail(truncate("Generation failed: " + err.Error()))
	}
	msg, ok := postprocessOutput(gem.OutputFormat, strings.TrimSpace(out))
	return Result{OK: ok, Message: msg, Public: public && ok}
}

func (e *Engine) runImage(ctx context.Context, req Request, gem model.Gem, input string, public bool) Result {
	if e.gen == nil {
		return fail(generatorMissingMessage)
	}
	prompt := strings.TrimSpace(input)
	if gem.SystemPrompt != "" {
		prompt = gem.SystemPrompt + "\n\n" + prompt
	}

	data, mime, err := e.gen.GenerateImage(ctx, prompt, "1:1")
	if err != nil {
		e.logger.Warn("image generation failed", "gem", gem.Name, "error", err)
		return fail(truncate("Image generation failed: " + err.Error()))
	}

	if req.Uploader == nil {
		return Result{OK: true, Message: "The image was generated, but no file upload client is configured. Grant the bot the `files:write` scope to receive images."}
	}

	ext := ".jpg"
	if mime == "image/png" {
		ext = ".png"
	}
	filename := fmt.Sprintf("gem-%s-%d%s", gem.Name, time.Now().Unix(), ext)

	target := ""
	if public && req.ChannelID != "" {
		target = req.ChannelID
	} else if req.UserID != "" {
		dm, err := req.Uploader.OpenDirectMessage(ctx, req.UserID)
		if err != nil {
			e.logger.Warn("open dm failed", "user", req.UserID, "error", err)
		} else {
			target = dm
		}
	}
	if target == "" {
		target = req.ChannelID
	}
	if target == "" {
		return Result{OK: true, Message: "The image was generated, but there is no channel to deliver it to."}
	}

	if err := req.Uploader.UploadFile(ctx, target, filename, data, "Gem "+gem.Name); err != nil {
		e.logger.Warn("image upload failed", "gem", gem.Name, "channel", target, "error", err)
		return Result{OK: true, Message: uploadHint(err)}
	}
	if target == req.ChannelID {
		return Result{OK: true, Message: "Image posted."}
	}
	return Result{OK: true, Message: "The image was sent to you in a direct message."}
}

func (e *Engine) handleList(ctx context.Context, req Request) Result {
	gems, err := e.store.List(ctx, req.WorkspaceID, 50)
	if err != nil {
		return e.storeFailure("list gems", err)
	}
	if len(gems) == 0 {
		return Result{OK: true, Message: "No gems yet. Create one with `/gem create <name> <text...>`."}
	}
	var b strings.Builder
	b.WriteString("Available gems:\n")
	for _, g := range gems {
		b.WriteString("- `" + g.Name + "`")
		if g.Summary != "" {
			b.WriteString(" — " + g.Summary)
		}
		if !g.Enabled {
			b.WriteString(" (disabled)")
		}
		b.WriteString("\n")
	}
	return Result{OK: true, Message: strings.TrimRight(b.String(), "\n")}
}

func (e *Engine) handleShow(ctx context.Context, req Request, tokens []string) Result {
	if len(tokens) < 2 {
		return fail("Pass a gem name: `/gem show <name>`.")
	}
	name, err := model.ValidateName(tokens[1])
	if err != nil {
		return fail(invalidNameMessage(tokens[1]))
	}
	gem, err := e.store.Get(ctx, req.WorkspaceID, name)
	if err == storage.ErrNotFound {
		return fail(fmt.Sprintf("Gem `%s` was not found. Try `/gem list`.", name))
	}
	if err != nil {
		return e.storeFailure("get gem", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", gem.Name)
	if !gem.Enabled {
		b.WriteString(" (disabled)")
	}
	b.WriteString("\n")
	if gem.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", gem.Summary)
	}
	fmt.Fprintf(&b, "Input: %s / Output: %s\n", LabelForInput(gem.InputFormat), LabelForOutput(gem.OutputFormat))
	if gem.SystemPrompt != "" {
		fmt.Fprintf(&b, "System prompt:\n```\n%s\n```\n", gem.SystemPrompt)
	}
	if gem.Body != "" {
		fmt.Fprintf(&b, "Static body:\n```\n%s\n```\n", gem.Body)
	}
	return Result{OK: true, Message: truncate(strings.TrimRight(b.String(), "\n"))}
}

func (e *Engine) handleDelete(ctx context.Context, req Request, tokens []string) Result {
	if len(tokens) < 2 {
		return fail("Pass a gem name: `/gem delete <name>`.")
	}
	name, err := model.ValidateName(tokens[1])
	if err != nil {
		return fail(invalidNameMessage(tokens[1]))
	}
	found, err := e.store.Delete(ctx, req.WorkspaceID, name)
	if err != nil {
		return e.storeFailure("delete gem", err)
	}
	if !found {
		return fail(fmt.Sprintf("Gem `%s` was not found.", name))
	}
	return Result{OK: true, Message: fmt.Sprintf("Gem `%s` deleted.", name)}
}

// record writes one usage event, best effort. Metrics failures never
// affect the command result.
func (e *Engine) record(ctx context.Context, req Request, name string, public, ok bool) {
	if counter, err := telemetry.GemRunCounter(); err == nil {
		counter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("gem.name", name),
			attribute.Bool("run.ok", ok),
			attribute.Bool("run.public", public),
		))
	}
	if e.recorder == nil {
		return
	}
	run := model.GemRun{
		WorkspaceID: req.WorkspaceID,
		GemName:     name,
		Public:      public,
		OK:          ok,
		OccurredAt:  time.Now().UTC(),
	}
	if req.UserID != "" {
		uid := req.UserID
		run.UserID = &uid
	}
	if err := e.recorder.RecordGemRun(ctx, run); err != nil {
		e.logger.Warn("record gem run failed", "gem", name, "error", err)
	}
}

func (e *Engine) storeFailure(op string, err error) Result {
	e.logger.Error("gem store unavailable", "op", op, "error", err)
	return fail("The gem store is unavailable right now. Check the `DATABASE_URL` configuration, or retry shortly.")
}

const generatorMissingMessage = "AI gems are not configured on this deployment. Set `GEMINI_API_KEY` to enable them."

// defaultSystemPrompt stands in when a gem carries no system prompt of
// its own.
const defaultSystemPrompt = "You are a helpful assistant."

func invalidNameMessage(name string) string {
	return fmt.Sprintf("`%s` is not a valid gem name. Names are 1-32 characters of lowercase letters, digits, `-` and `_`, starting with a letter or digit.", name)
}

// uploadHint maps chat-platform upload errors to remediation hints.
func uploadHint(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "missing_scope"), strings.Contains(msg, "not_allowed_token_type"):
		return "The image was generated, but the upload was rejected: the bot token is missing the `files:write` scope. Re-install the app with that scope."
	case strings.Contains(msg, "not_in_channel"), strings.Contains(msg, "channel_not_found"):
		return "The image was generated, but the bot cannot post in this channel. Invite the bot with `/invite` and run the gem again."
	default:
		return truncate("The image was generated, but the upload failed: " + msg)
	}
}

func fail(msg string) Result {
	return Result{OK: false, Message: msg}
}

func failOutcome(msg string) Outcome {
	return Outcome{Result: fail(msg)}
}

func resultOutcome(r Result) Outcome {
	return Outcome{Result: r}
}
