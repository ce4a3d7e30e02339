package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"coins-catcher/internal/model"
)

const keepAliveInterval = 15 * time.Second

// events streams the caller's committed balance changes as server-sent
// events until the client goes away or the server shuts down.
func (s *Server) events(c *fiber.Ctx) error {
	sess := SessionFrom(c)
	if _, err := s.svc.Accounts.Get(c.UserContext(), sess.AccountID); err != nil {
		return err
	}

	// The request context ends when the handler returns, so the stream
	// hangs off the server's context instead.
	ctx, cancel := context.WithCancel(s.ctx)
	events, err := s.store.Subscribe(ctx, sess.AccountID)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if err := streamEvents(ctx, w, events, keepAliveInterval); err != nil {
			log.Debug().Err(err).Str("account_id", sess.AccountID).Msg("Event stream closed")
		}
	}))
	return nil
}

type flushWriter interface {
	io.Writer
	Flush() error
}

// streamEvents writes events until ctx is done, the channel closes, or a
// write fails. Comments keep idle connections open and detect dead peers.
func streamEvents(ctx context.Context, w flushWriter, events <-chan model.AccountEvent, keepAlive time.Duration) error {
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func writeEvent(w io.Writer, ev model.AccountEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: balance\ndata: %s\n\n", data)
	return err
}
