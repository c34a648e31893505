/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/blacktop/sendto/internal/config"
	"github.com/blacktop/sendto/internal/content"
	"github.com/blacktop/sendto/internal/events"
	"github.com/blacktop/sendto/internal/logutil"
	"github.com/blacktop/sendto/internal/publish"
	"github.com/blacktop/sendto/internal/sendto"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	messageFlag  string
	configPath   string
	envFile      string
	targetsFlag  []string
	titleFlag    string
	urlFlag      string
	tagsFlag     []string
	mediaFlag    []string
	altText      string
	attachFlag   map[string]string
	keyboardFlag []string
	concurrency  int
	dryRun       bool
	verbose      bool
)

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sendto [message]",
		Short: "Publish one message to many platforms",
		Long: "sendto publishes the same update to Telegram, Twitter/X, Facebook, LinkedIn, " +
			"Discord, Slack, Mastodon, Bluesky, Reddit, Instagram, Pinterest, WhatsApp and Tumblr. Credentials come from --config, a .env file " +
			"or the environment; only fully configured platforms are used.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logutil.SetVerbose(verbose)
		},
		RunE: runRoot,
		Example: `  sendto --message "hello world" --media ./shot.png
  sendto "Ship it!" --target telegram --target x
  sendto "Meet here" --target telegram --attach type=location,latitude=52.52,longitude=13.40
  echo "Release shipped" | sendto --target all --dry-run`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with platform credentials")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging")

	cmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Message text to post")
	cmd.Flags().StringSliceVarP(&targetsFlag, "target", "t", []string{"all"}, "Platforms to post to (telegram, twitter|x, facebook, linkedin, discord, slack, mastodon, bluesky, reddit, instagram, pinterest, whatsapp, tumblr, or all)")
	cmd.Flags().StringVar(&titleFlag, "title", "", "Title shown above the message where the platform supports it")
	cmd.Flags().StringVar(&urlFlag, "url", "", "Link to include with the post")
	cmd.Flags().StringSliceVar(&tagsFlag, "tag", nil, "Hashtags to append")
	cmd.Flags().StringSliceVar(&mediaFlag, "media", nil, "Media files or URLs to attach")
	cmd.Flags().StringVar(&altText, "alt-text", "", "Alternative text for the first media item")
	cmd.Flags().StringToStringVar(&attachFlag, "attach", nil, "Telegram attachment as key=value pairs, e.g. type=photo,file=cat.jpg")
	cmd.Flags().StringArrayVar(&keyboardFlag, "keyboard", nil, "Telegram inline keyboard button as text=url; repeat for more rows")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum platforms published to at once")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the formatted text per platform without posting")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(newPlatformsCommand())
	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	message, err := resolveMessage(cmd, args)
	if err != nil {
		return err
	}

	targets, err := normalizeTargets(targetsFlag)
	if err != nil {
		return err
	}

	attachment, err := parseAttachment(attachFlag)
	if err != nil {
		return err
	}
	keyboard, err := parseKeyboard(keyboardFlag)
	if err != nil {
		return err
	}

	settings, err := config.Load(configPath, config.WithEnvFile(envFile))
	if err != nil {
		return err
	}
	cfg, err := settings.Publish()
	if err != nil {
		return err
	}

	sink, closeSink := newEventSink(settings.Kafka)
	defer closeSink()

	workers := concurrency
	if workers == 0 {
		workers = settings.Concurrency
	}
	client, err := sendto.New(cfg,
		sendto.WithEventSink(sink),
		sendto.WithOnly(targets...),
		sendto.WithConcurrency(workers),
	)
	if err != nil {
		return err
	}
	if len(client.Platforms()) == 0 {
		return errors.New("no configured platforms selected (see `sendto platforms`)")
	}

	post := buildPost(message)
	opts := publish.Options{}
	if alt := strings.TrimSpace(altText); alt != "" {
		opts["alt_text"] = alt
	}

	if dryRun {
		return preview(cmd.OutOrStdout(), client, post, opts, attachment)
	}

	results := publishAll(ctx, client, post, message, attachment, keyboard, opts)
	return report(cmd.OutOrStdout(), client.Platforms(), results)
}

func resolveMessage(cmd *cobra.Command, args []string) (string, error) {
	message := messageFlag

	if len(args) > 0 {
		if message != "" {
			return "", errors.New("provide the message either as an argument or with --message, not both")
		}
		message = strings.Join(args, " ")
	}

	if message != "" {
		return strings.TrimSpace(message), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok && !term.IsTerminal(int(file.Fd())) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		message = strings.TrimSpace(string(data))
	}

	if message == "" {
		return "", errors.New("message is required")
	}
	return message, nil
}

// normalizeTargets canonicalizes target names. A nil result means every
// configured platform.
func normalizeTargets(values []string) ([]string, error) {
	var result []string
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return nil, nil
		}
		name, ok := publish.CanonicalName(raw)
		if !ok {
			return nil, fmt.Errorf("unsupported target %q", raw)
		}
		if !slices.Contains(result, name) {
			result = append(result, name)
		}
	}
	if len(result) == 0 {
		return nil, errors.New("no targets selected")
	}
	return result, nil
}

func parseAttachment(values map[string]string) (sendto.Attachment, error) {
	if len(values) == 0 {
		return nil, nil
	}
	return sendto.ParseAttachment(values)
}

func parseKeyboard(values []string) (*telego.InlineKeyboardMarkup, error) {
	if len(values) == 0 {
		return nil, nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(values))
	for _, v := range values {
		text, link, ok := strings.Cut(v, "=")
		text, link = strings.TrimSpace(text), strings.TrimSpace(link)
		if !ok || text == "" || link == "" {
			return nil, fmt.Errorf("invalid keyboard button %q (want text=url)", v)
		}
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(text).WithURL(link)))
	}
	return tu.InlineKeyboard(rows...), nil
}

func newEventSink(kafka events.KafkaConfig) (publish.EventSink, func()) {
	sinks := events.Multi{events.NewLogSink(logutil.Logger())}
	if !kafka.Enabled() {
		return sinks, func() {}
	}
	ks := events.NewKafkaSink(kafka)
	logutil.Debugf("publishing events to kafka %s", strings.Join(kafka.Brokers, ","))
	return append(sinks, ks), func() {
		if err := ks.Close(); err != nil {
			logutil.Warnf("close kafka writer: %v", err)
		}
	}
}

func buildPost(message string) content.Post {
	opts := []content.PostOption{
		content.WithTitle(titleFlag),
		content.WithURL(urlFlag),
		content.WithTags(tagsFlag...),
	}
	if len(mediaFlag) > 0 {
		items := make([]content.Media, 0, len(mediaFlag))
		for _, path := range mediaFlag {
			items = append(items, content.Media{Path: path, MimeType: mimeType(path)})
		}
		opts = append(opts, content.WithMedia(content.NewMediaCollection(items...)))
	}
	return content.NewPost(message, opts...)
}

var mediaTypes = map[string]string{
	".mp4": content.MimeMP4,
	".mov": "video/quicktime",
	".mp3": content.MimeMPEG,
	".ogg": content.MimeOGG,
	".oga": content.MimeOGG,
}

func mimeType(path string) string {
	ext := filepath.Ext(path)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	ext = strings.ToLower(ext)
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t
	}
	return content.MimeJPEG
}

// publishAll fans the post out. Telegram takes the dedicated path when an
// attachment or keyboard was given so those reach the Bot API; the other
// platforms still go through the bounded fan-out.
func publishAll(ctx context.Context, client *sendto.SendTo, post content.Post, message string, attachment sendto.Attachment, keyboard *telego.InlineKeyboardMarkup, opts publish.Options) map[string]publish.Result {
	platforms := client.Platforms()
	if !slices.Contains(platforms, publish.Telegram) || (attachment == nil && keyboard == nil) {
		return client.ToAll(ctx, post, opts)
	}

	others := slices.DeleteFunc(slices.Clone(platforms), func(name string) bool { return name == publish.Telegram })
	results := client.ToMany(ctx, post, others, opts)
	results[publish.Telegram] = client.Telegram(ctx, message, attachment, keyboard, opts)
	return results
}

func preview(out io.Writer, client *sendto.SendTo, post content.Post, opts publish.Options, attachment sendto.Attachment) error {
	for _, name := range client.Platforms() {
		payload, err := client.Preview(post, name, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[dry-run] %s (%d/%d", name, len([]rune(payload.Text)), payload.Limit)
		if payload.Truncated {
			fmt.Fprint(out, ", truncated")
		}
		fmt.Fprintf(out, "):\n%s\n", payload.Text)
	}
	if post.HasMedia() {
		for _, m := range post.Media().All() {
			fmt.Fprintf(out, "[dry-run] media: %s (%s)\n", m.Path, m.MimeType)
		}
	}
	if attachment != nil {
		fmt.Fprintf(out, "[dry-run] telegram attachment: %s\n", sendto.TypeOf(attachment))
	}
	return nil
}

func report(out io.Writer, order []string, results map[string]publish.Result) error {
	var errs []error
	for _, name := range order {
		res, ok := results[name]
		if !ok {
			continue
		}
		if res.Success {
			fmt.Fprintf(out, "posted to %s (%s)\n", name, res.ExternalID)
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %s", name, res.Error))
	}
	return errors.Join(errs...)
}
