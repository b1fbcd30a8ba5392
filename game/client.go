package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	outboxSize   = 256
	pingInterval = 30 * time.Second
)

// Client is one live connection. Its id is the player id for as long as the
// connection lives; a reconnect gets a new one.
type Client struct {
	id      string
	socket  Socket
	limiter *rate.Limiter
	outbox  chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	room    *Room
	log     zerolog.Logger

	closeOnce   sync.Once
	closeReason string
}

type clientEnvelope struct {
	raw  []byte
	from *Client
}

func NewClient(id string, socket Socket) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      id,
		socket:  socket,
		limiter: rate.NewLimiter(20, 40),
		outbox:  make(chan []byte, outboxSize),
		ctx:     ctx,
		cancel:  cancel,
		log:     log.With().Str("player", id).Logger(),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a packet without blocking. A full outbox means the client
// stopped reading; it is closed and will be removed by its read pump.
func (c *Client) Send(packet any) bool {
	data, err := json.Marshal(packet)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal packet")
		return false
	}
	select {
	case c.outbox <- data:
		return true
	case <-c.ctx.Done():
		return false
	default:
		c.log.Warn().Msg("outbox full, dropping client")
		c.Close("slow-consumer")
		return false
	}
}

// Close stops both pumps. Packets already queued are still flushed.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.log.Debug().Str("reason", reason).Msg("closing client")
		c.closeReason = reason
		c.cancel()
	})
}

func (c *Client) ReadPump() {
	room := c.room
	defer room.RemoveMe(c)

	for {
		data, err := c.socket.Read()
		if err != nil {
			c.log.Debug().Err(err).Msg("read ended")
			return
		}
		if !c.limiter.Allow() {
			c.log.Debug().Msg("rate limited, dropping frame")
			continue
		}
		if !room.Deliver(c.ctx, clientEnvelope{raw: data, from: c}) {
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer func() { c.socket.Close(c.closeReason) }()

	for {
		select {
		case data := <-c.outbox:
			if err := c.socket.Write(data); err != nil {
				c.Close("write-failed")
				return
			}
		case <-ticker.C:
			if err := c.socket.Ping(); err != nil {
				c.Close("ping-failed")
				return
			}
		case <-c.ctx.Done():
			c.flush()
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case data := <-c.outbox:
			if err := c.socket.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
