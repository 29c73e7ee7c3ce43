package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Apology replaces the assistant answer when the text path fails.
const Apology = "Sorry, I encountered an error processing your message. Please try again."

const (
	inboxSize   = 32
	persistSize = 256
)

// Dependencies are the collaborators of a Controller.
type Dependencies struct {
	Microphone Microphone
	SignedURLs SignedURLSource
	Dialer     VendorDialer
	Transcript Transcript
	Completer  TextCompleter

	// OnUpdate, if set, is called from the event loop after every handled command.
	OnUpdate func(Snapshot)
}

// Controller runs the voice session state machine for one conversation.
type Controller struct {
	conversationID string
	deps           Dependencies
	logger         *slog.Logger

	inbox   chan any
	persist chan models.Item
	done    chan struct{}

	// Owned by the Run goroutine.
	status   Status
	speaking bool
	messages []models.Message
	vendor   VendorSession
	// gen identifies the current connection attempt; events tagged with an older gen are stale.
	gen int
	// inflight counts issued completions and history loads whose results have not been handled.
	inflight int

	mu       sync.Mutex
	snapshot Snapshot
}

type toggleCmd struct{}

type textCmd struct {
	text string
}

type loadHistoryCmd struct{}

type historyResult struct {
	records []models.Record
	err     error
}

type connectResult struct {
	gen     int
	session VendorSession
	err     error
}

type vendorEvent struct {
	gen int
	ev  Event
}

type completionResult struct {
	text string
	err  error
}

// NewController creates an idle controller for conversationID. Call Run to start processing.
func NewController(conversationID string, deps Dependencies, logger *slog.Logger) *Controller {
	return &Controller{
		conversationID: conversationID,
		deps:           deps,
		logger:         logger.With(slog.String("module", "session"), slog.String("conversationID", conversationID)),
		inbox:          make(chan any, inboxSize),
		persist:        make(chan models.Item, persistSize),
		done:           make(chan struct{}),
	}
}

// ToggleVoice starts a voice session when idle and ends it when connected. Toggles while connecting are
// ignored.
func (c *Controller) ToggleVoice() {
	c.post(toggleCmd{})
}

// SubmitText sends typed text through the text chat path, independently of the voice session.
func (c *Controller) SubmitText(text string) {
	c.post(textCmd{text: text})
}

// LoadHistory restores the displayed transcript from the transcript store.
func (c *Controller) LoadHistory() {
	c.post(loadHistoryCmd{})
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snapshot
	s.Messages = slices.Clone(s.Messages)
	return s
}

func (c *Controller) post(cmd any) bool {
	select {
	case c.inbox <- cmd:
		return true
	case <-c.done:
		return false
	}
}

// Run processes commands until ctx is done. Commands already posted by then are still handled, and issued
// completions and history loads are not cancelled: Run waits for their results before returning. On return
// the vendor session is closed and every queued persist has been attempted.
func (c *Controller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.runPersister(context.WithoutCancel(ctx))
	}()

	defer func() {
		c.endVendorSession()
		close(c.done)
		close(c.persist)
		wg.Wait()
	}()

	c.publish()
	for {
		select {
		case <-ctx.Done():
			c.drain(ctx)
			return nil
		case cmd := <-c.inbox:
			c.handle(ctx, cmd)
			c.publish()
		}
	}
}

// drain handles the commands queued when Run stops and waits for the results of issued calls. Toggles are
// ignored so no new voice session is opened.
func (c *Controller) drain(ctx context.Context) {
	for {
		var cmd any
		if c.inflight > 0 {
			cmd = <-c.inbox
		} else {
			select {
			case cmd = <-c.inbox:
			default:
				return
			}
		}

		if _, ok := cmd.(toggleCmd); ok {
			c.logger.Debug("Ignoring toggle while stopping")
			continue
		}
		c.handle(ctx, cmd)
		c.publish()
	}
}

func (c *Controller) handle(ctx context.Context, cmd any) {
	switch cmd := cmd.(type) {
	case toggleCmd:
		c.handleToggle(ctx)
	case connectResult:
		c.handleConnectResult(cmd)
	case vendorEvent:
		c.handleVendorEvent(cmd)
	case textCmd:
		c.addAndPersist(models.RoleUser, cmd.text)
		c.inflight++
		go c.complete(context.WithoutCancel(ctx), cmd.text)
	case completionResult:
		c.inflight--
		text := cmd.text
		if cmd.err != nil {
			c.logger.Error("Error sending message", slog.String("err", cmd.err.Error()))
			text = Apology
		}
		c.addAndPersist(models.RoleAssistant, text)
	case loadHistoryCmd:
		c.inflight++
		go c.loadHistory(context.WithoutCancel(ctx))
	case historyResult:
		c.inflight--
		if cmd.err != nil {
			c.logger.Warn("No conversation history found", slog.String("err", cmd.err.Error()))
			return
		}
		c.mergeHistory(cmd.records)
	}
}

// mergeHistory puts stored turns before the displayed ones. Turns already displayed, such as those persisted
// while the history was loading, are skipped.
func (c *Controller) mergeHistory(records []models.Record) {
	if len(records) == 0 {
		return
	}

	shown := make(map[string]bool, len(c.messages))
	for _, msg := range c.messages {
		shown[msg.ID] = true
	}

	before := time.Now()
	if len(c.messages) > 0 {
		before = c.messages[0].Timestamp
	}

	merged := make([]models.Message, 0, len(records)+len(c.messages))
	for _, msg := range models.MessagesFromRecords(records, before) {
		if !shown[msg.ID] {
			merged = append(merged, msg)
		}
	}
	c.messages = append(merged, c.messages...)
}

func (c *Controller) handleToggle(ctx context.Context) {
	switch c.status {
	case StatusIdle:
		c.status = StatusConnecting
		c.gen++
		go c.connect(ctx, c.gen)
	case StatusConnecting:
		c.logger.Debug("Ignoring toggle while connecting")
	case StatusConnected:
		c.endVendorSession()
		c.reset()
	}
}

func (c *Controller) handleConnectResult(res connectResult) {
	if res.gen != c.gen || c.status == StatusIdle {
		if res.session != nil {
			if err := res.session.Close(); err != nil {
				c.logger.Debug("Failed to close stale session", slog.String("err", err.Error()))
			}
		}
		return
	}
	if res.err != nil {
		c.logger.Error("Connection error", slog.String("err", res.err.Error()))
		c.reset()
		return
	}
	c.vendor = res.session
}

func (c *Controller) handleVendorEvent(e vendorEvent) {
	if e.gen != c.gen {
		return
	}

	switch e.ev.Kind {
	case EventConnected:
		if c.status == StatusConnecting {
			c.status = StatusConnected
			c.logger.Info("Voice session connected")
		}
	case EventMessage:
		if c.status != StatusConnected {
			c.logger.Debug("Dropping message outside of a connected session")
			return
		}
		c.addAndPersist(models.RoleFromSource(e.ev.Source), e.ev.Text)
	case EventMode:
		c.speaking = e.ev.Speaking
	case EventDisconnected:
		c.logger.Info("Voice session disconnected")
		c.endVendorSession()
		c.reset()
	case EventError:
		errMsg := "unknown"
		if e.ev.Err != nil {
			errMsg = e.ev.Err.Error()
		}
		c.logger.Error("Connection error", slog.String("err", errMsg))
		c.endVendorSession()
		c.reset()
	}
}

// reset returns to idle and invalidates events of the previous connection attempt.
func (c *Controller) reset() {
	c.status = StatusIdle
	c.speaking = false
	c.gen++
}

func (c *Controller) endVendorSession() {
	if c.vendor == nil {
		return
	}
	if err := c.vendor.Close(); err != nil {
		c.logger.Debug("Failed to end vendor session", slog.String("err", err.Error()))
	}
	c.vendor = nil
}

func (c *Controller) connect(ctx context.Context, gen int) {
	res := connectResult{gen: gen}
	defer func() {
		if !c.post(res) && res.session != nil {
			_ = res.session.Close()
		}
	}()

	if err := c.deps.Microphone.RequestPermission(ctx); err != nil {
		res.err = errors.Wrap(err, "microphone")
		return
	}

	signedURL, err := c.deps.SignedURLs.SignedURL(ctx)
	if err != nil {
		res.err = errors.Wrap(err, "signed url")
		return
	}

	sess, err := c.deps.Dialer.Dial(ctx, signedURL, func(ev Event) {
		c.post(vendorEvent{gen: gen, ev: ev})
	})
	if err != nil {
		res.err = errors.Wrap(err, "start session")
		return
	}
	res.session = sess
}

func (c *Controller) complete(ctx context.Context, text string) {
	resp, err := c.deps.Completer.Complete(ctx, text)
	if err == nil && resp == "" {
		err = errors.New("no response received")
	}
	c.post(completionResult{text: resp, err: err})
}

func (c *Controller) loadHistory(ctx context.Context) {
	records, err := c.deps.Transcript.Records(ctx, c.conversationID)
	c.post(historyResult{records: records, err: err})
}

func (c *Controller) addAndPersist(role models.Role, content string) {
	msg := models.Message{
		ID:        "msg_" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	c.messages = append(c.messages, msg)
	c.persist <- models.ItemFromMessage(msg)
}

// runPersister appends queued items in order. Failures are logged and dropped.
func (c *Controller) runPersister(ctx context.Context) {
	for item := range c.persist {
		if err := c.deps.Transcript.Append(ctx, c.conversationID, item); err != nil {
			c.logger.Error("Failed to save message",
				slog.String("messageID", item.ID),
				slog.String("err", err.Error()))
		}
	}
}

func (c *Controller) publish() {
	s := Snapshot{
		Status:   c.status,
		Speaking: c.speaking,
		Messages: slices.Clone(c.messages),
	}

	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()

	if c.deps.OnUpdate != nil {
		c.deps.OnUpdate(s)
	}
}
