package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/MegaGrindStone/voice-web-ui/internal/apiclient"
	"github.com/MegaGrindStone/voice-web-ui/internal/convai"
	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	"github.com/MegaGrindStone/voice-web-ui/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	cmdVoice = "/voice"
	cmdQuit  = "/quit"
)

type talkOptions struct {
	conversationID string
	noMic          bool
}

func newTalkCommand(root *rootOptions) *cobra.Command {
	opts := &talkOptions{}

	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. Typed lines go through the text chat path.
"/voice" toggles the voice session and "/quit" exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTalk(ctx, root, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.conversationID, "conversation", "c", "", "Conversation id to resume, a new one by default")
	cmd.Flags().BoolVar(&opts.noMic, "no-mic", false, "Refuse microphone access, voice sessions will not start")

	return cmd
}

func runTalk(ctx context.Context, root *rootOptions, opts *talkOptions, in io.Reader, out io.Writer) error {
	logger := root.logger()

	conversationID := opts.conversationID
	if conversationID == "" {
		conversationID = models.NewConversationID()
	}
	fmt.Fprintf(out, "Conversation %s\n", conversationID)

	client := apiclient.New(root.server)
	p := &printer{out: out}

	c := session.NewController(conversationID, session.Dependencies{
		Microphone: microphone(opts.noMic),
		SignedURLs: client,
		Dialer:     convai.NewDialer(logger),
		Transcript: client,
		Completer:  client,
		OnUpdate:   p.update,
	}, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go readLines(ctx, in, lines)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.Run(egCtx)
	})
	eg.Go(func() error {
		defer cancel()

		c.LoadHistory()
		for {
			select {
			case <-egCtx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				switch line {
				case "":
				case cmdQuit:
					return nil
				case cmdVoice:
					c.ToggleVoice()
				default:
					c.SubmitText(line)
				}
			}
		}
	})

	return eg.Wait()
}

// readLines sends trimmed input lines until in is exhausted or ctx is done.
func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- strings.TrimSpace(scanner.Text()):
		case <-ctx.Done():
			return
		}
	}
}

func microphone(denied bool) session.Microphone {
	return session.MicrophoneFunc(func(context.Context) error {
		if denied {
			return session.ErrPermissionDenied
		}
		return nil
	})
}

// printer writes new transcript lines and status changes of a session.
type printer struct {
	out io.Writer

	mu       sync.Mutex
	printed  map[string]bool
	status   session.Status
	speaking bool
}

func (p *printer) update(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.printed == nil {
		p.printed = make(map[string]bool)
	}

	if s.Status != p.status {
		fmt.Fprintf(p.out, "-- voice %s\n", s.Status)
		p.status = s.Status
	}
	if s.Speaking != p.speaking {
		if s.Speaking {
			fmt.Fprintln(p.out, "-- agent speaking")
		} else {
			fmt.Fprintln(p.out, "-- agent listening")
		}
		p.speaking = s.Speaking
	}

	for _, msg := range s.Messages {
		if p.printed[msg.ID] {
			continue
		}
		p.printed[msg.ID] = true
		fmt.Fprintf(p.out, "%s %s: %s\n", msg.Timestamp.Format("15:04:05"), msg.Role, msg.Content)
	}
}
