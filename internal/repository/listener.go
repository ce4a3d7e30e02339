package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"coins-catcher/internal/model"
)

// listenerBackoff is the delay before re-acquiring a broken LISTEN connection.
const listenerBackoff = time.Second

// Subscribe starts the LISTEN loop on first use and registers a subscriber.
func (s *PostgresStore) Subscribe(ctx context.Context, accountID string) (<-chan model.AccountEvent, error) {
	s.listenOnce.Do(func() {
		s.listenErr = s.startListener()
	})
	if s.listenErr != nil {
		return nil, s.listenErr
	}
	return s.hub.Subscribe(ctx, accountID), nil
}

func (s *PostgresStore) startListener() error {
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := s.acquireListenConn(ctx)
	if err != nil {
		cancel()
		return err
	}

	s.stopListener = cancel
	s.listenerDone = make(chan struct{})
	go s.listen(ctx, conn)

	log.Info().Str("channel", EventChannel).Msg("Account event listener started")
	return nil
}

func (s *PostgresStore) acquireListenConn(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+EventChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", EventChannel, err)
	}
	return conn, nil
}

// listen forwards notifications to the hub until ctx is cancelled,
// re-acquiring the connection if it breaks.
func (s *PostgresStore) listen(ctx context.Context, conn *pgxpool.Conn) {
	defer close(s.listenerDone)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_, _ = conn.Exec(context.Background(), "UNLISTEN *")
				conn.Release()
				return
			}

			log.Error().Err(err).Msg("Account event listener lost connection")
			conn.Release()
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(listenerBackoff):
				}
				if conn, err = s.acquireListenConn(ctx); err == nil {
					break
				}
				log.Error().Err(err).Msg("Failed to restart account event listener")
			}
			continue
		}

		var ev model.AccountEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			log.Warn().Err(err).Str("payload", n.Payload).Msg("Dropping malformed account event")
			continue
		}
		s.hub.Publish(ev)
	}
}
