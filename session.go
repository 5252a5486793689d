package chatmd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riverfjs/chatmd-go/internal/chat"
	"github.com/riverfjs/chatmd-go/internal/reconciler"
)

// ReasonCancelled is the abort reason of a cancelled session.
const ReasonCancelled = "cancelled"

// Update is one publication of a session: the output to display and the status.
type Update struct {
	SessionID string
	Output    RenderedOutput
	Status    Status
	Reason    string // abort reason; empty unless Status is StatusAborted
	Err       error
	Reparses  int
}

// Renderer starts sessions. Sessions share no mutable state; a Renderer may
// start any number of them concurrently.
type Renderer struct {
	opts     *Options
	pipeline *Pipeline
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	o := applyOptions(opts...)
	return &Renderer{opts: o, pipeline: newPipeline(o)}
}

// Pipeline returns the full renderer used by sessions.
func (r *Renderer) Pipeline() *Pipeline {
	return r.pipeline
}

// Start starts a streaming or non-streaming session depending on WithStreaming.
func (r *Renderer) Start(ctx context.Context, prompt string, history ...chat.Message) *Session {
	if r.opts.Streaming {
		return r.StartStream(ctx, prompt, history...)
	}
	return r.Send(ctx, prompt, history...)
}

// StartStream sends prompt to the stream client and renders the response as it arrives.
func (r *Renderer) StartStream(ctx context.Context, prompt string, history ...chat.Message) *Session {
	s := r.newSession(ctx)
	req := r.opts.request(prompt, history)
	s.logger.Info("session started", zap.Bool("streaming", true))
	go s.runStream(req)
	return s
}

// Send sends prompt to the non-streaming client. The session publishes exactly one
// output and settles, or aborts.
func (r *Renderer) Send(ctx context.Context, prompt string, history ...chat.Message) *Session {
	s := r.newSession(ctx)
	req := r.opts.request(prompt, history)
	s.logger.Info("session started", zap.Bool("streaming", false))
	go s.runComplete(req)
	return s
}

func (r *Renderer) newSession(parent context.Context) *Session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &Session{
		id:         id,
		opts:       r.opts,
		pipeline:   r.pipeline,
		logger:     r.opts.Logger.With(zap.String("session", id)),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		subscriber: r.opts.Subscriber,
		started:    time.Now(),
	}
}

// Session 单个提示词的一次响应渲染
//
// 会话在自己的 goroutine 上顺序处理文本块；其它 goroutine 通过访问器读取快照。
type Session struct {
	id         string
	opts       *Options
	pipeline   *Pipeline
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	subscriber func(Update)
	started    time.Time

	mu       sync.Mutex
	last     RenderedOutput
	status   Status
	reason   string
	err      error
	frames   int
	reparses int
}

// ID returns the unique session ID.
func (s *Session) ID() string { return s.id }

// Cancel stops consuming chunks. Already published output is kept and the session
// ends Aborted with reason "cancelled". Cancelling a finished session has no effect.
func (s *Session) Cancel() { s.cancel() }

// Done is closed when the session reached a terminal status.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends and returns the final output. The error is
// ErrCancelled for a cancelled session or the transport error for a failed one.
func (s *Session) Wait() (RenderedOutput, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone(), s.err
}

// Last returns a snapshot of the last published output.
func (s *Session) Last() RenderedOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Reason returns the abort reason.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Frames returns the number of outputs published.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Reparses returns the number of full renders performed.
func (s *Session) Reparses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reparses
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.started)
}

func (s *Session) newReconciler() *reconciler.Reconciler {
	return reconciler.New(s.pipeline,
		reconciler.WithThreshold(s.opts.Threshold),
		reconciler.WithFenceMarkers(s.opts.FenceMarkers...),
		reconciler.WithLogger(s.logger),
	)
}

func (s *Session) runStream(req chat.Request) {
	defer close(s.done)
	defer s.cancel()

	if s.opts.StreamClient == nil {
		s.abort(reconciler.New(s.pipeline), ErrNoClient)
		return
	}

	rec := s.newReconciler()
	content, errs := s.opts.StreamClient.Stream(s.ctx, req)
	// 生产者在 ctx 取消后退出，排空通道避免其阻塞
	defer func() {
		s.cancel()
		for range content {
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.abort(rec, s.ctx.Err())
			return

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				s.abort(rec, err)
				return
			}

		case chunk, ok := <-content:
			if !ok {
				if errs != nil {
					if err := <-errs; err != nil {
						s.abort(rec, err)
						return
					}
				}
				out, err := rec.Complete(s.ctx)
				if err != nil {
					s.abort(rec, err)
					return
				}
				s.publish(out, StatusSettled, rec.Reparses())
				s.logger.Info("session settled",
					zap.Int("bytes", len(out.RawText)),
					zap.Int("reparses", rec.Reparses()),
					zap.Duration("took", s.Elapsed()),
				)
				return
			}
			if err := s.ctx.Err(); err != nil {
				s.abort(rec, err)
				return
			}
			out, err := rec.Push(s.ctx, chunk)
			if err != nil {
				s.abort(rec, err)
				return
			}
			s.publish(out, StatusStreaming, rec.Reparses())
		}
	}
}

func (s *Session) runComplete(req chat.Request) {
	defer close(s.done)
	defer s.cancel()

	rec := s.newReconciler()
	if s.opts.Client == nil {
		s.abort(rec, ErrNoClient)
		return
	}

	text, err := s.opts.Client.Complete(s.ctx, req)
	if err == nil {
		err = s.ctx.Err()
	}
	if err != nil {
		s.abort(rec, err)
		return
	}

	out, err := rec.Settle(s.ctx, text)
	if err != nil {
		s.abort(rec, err)
		return
	}
	s.publish(out, StatusSettled, rec.Reparses())
	s.logger.Info("session settled",
		zap.Int("bytes", len(out.RawText)),
		zap.Duration("took", s.Elapsed()),
	)
}

// publish records out and hands a copy to the subscriber.
func (s *Session) publish(out RenderedOutput, status Status, reparses int) {
	s.mu.Lock()
	s.last = out
	s.status = status
	s.frames++
	s.reparses = reparses
	s.mu.Unlock()

	if s.subscriber != nil {
		s.subscriber(Update{
			SessionID: s.id,
			Output:    out.Clone(),
			Status:    status,
			Reparses:  reparses,
		})
	}
}

// abort ends the session keeping the last published output.
func (s *Session) abort(rec *reconciler.Reconciler, cause error) {
	reason, err := ReasonCancelled, ErrCancelled
	if !errors.Is(cause, context.Canceled) {
		reason, err = cause.Error(), cause
	}
	last := rec.Abort(reason)

	s.mu.Lock()
	s.status = StatusAborted
	s.reason = reason
	s.err = err
	s.reparses = rec.Reparses()
	s.mu.Unlock()

	if err == ErrCancelled {
		s.logger.Info("session cancelled", zap.Int("bytes", len(last.RawText)))
	} else {
		s.logger.Warn("session failed", zap.Error(cause))
	}

	if s.subscriber != nil {
		s.subscriber(Update{
			SessionID: s.id,
			Output:    last,
			Status:    StatusAborted,
			Reason:    reason,
			Err:       err,
			Reparses:  rec.Reparses(),
		})
	}
}
