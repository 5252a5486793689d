package chat

import (
	"context"
	"time"
	"unicode/utf8"
)

// DefaultChunkSize is the number of runes per simulated chunk.
const DefaultChunkSize = 4

// Simulator replays a fixed response as a stream of small chunks.
// It is used by the replay command and in tests.
type Simulator struct {
	Text      string
	ChunkSize int           // runes per chunk
	Delay     time.Duration // pause before each chunk after the first
	FailAfter int           // chunks delivered before Err is reported, 0 disables
	Err       error
}

// Chunks splits the text the way Stream delivers it.
func (s *Simulator) Chunks() []string {
	size := s.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks []string
	text := s.Text
	for text != "" {
		end, n := 0, 0
		for end < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[end:])
			end += w
			n++
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}

// Complete returns the whole text, or Err when the simulator is set to fail.
func (s *Simulator) Complete(ctx context.Context, _ Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.FailAfter > 0 && s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}

// Stream delivers the chunks, honouring ctx between chunks.
func (s *Simulator) Stream(ctx context.Context, _ Request) (<-chan string, <-chan error) {
	content := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(content)

		for i, chunk := range s.Chunks() {
			if s.FailAfter > 0 && i == s.FailAfter && s.Err != nil {
				errs <- s.Err
				return
			}
			if i > 0 && s.Delay > 0 {
				timer := time.NewTimer(s.Delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					errs <- ctx.Err()
					return
				case <-timer.C:
				}
			}
			select {
			case content <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return content, errs
}
