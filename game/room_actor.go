package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"partyrooms/domain"
)

const (
	storeTimeout = 5 * time.Second
	// alarmRetry is how long a deadline waits before firing again when its
	// transition could not be saved.
	alarmRetry = 5 * time.Second
)

type persistedState struct {
	Kind    string          `json:"kind"`
	Private bool            `json:"private,omitempty"`
	State   json.RawMessage `json:"state"`
}

// Run is the room's actor loop. It returns once the lobby agreed to evict the
// room or ctx is cancelled.
func (r *Room) Run(ctx context.Context) {
	defer r.shutdown()
	r.load(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.joinReqs:
			r.handleJoinRequest(ctx, req)
		case env := <-r.inbox:
			r.handleEnvelope(ctx, env)
		case c := <-r.removals:
			r.handleRemoveClient(ctx, c)
		case at := <-r.alarms:
			r.handleAlarm(ctx, at)
		case <-r.ticks:
		}

		if r.idle() && r.parent.Release(r) {
			r.log.Debug().Msg("room evicted")
			return
		}
	}
}

func (r *Room) shutdown() {
	r.scheduler.Stop()
	close(r.done)
	for _, id := range r.order {
		r.clients[id].Close("room-closed")
	}
}

func (r *Room) idle() bool {
	return len(r.clients) == 0 && r.scheduler.Pending().IsZero()
}

// load reads the persisted state exactly once per actor lifetime.
func (r *Room) load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	blob, err := r.store.Get(ctx, r.key)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		r.log.Error().Err(err).Msg("loading room state")
		r.broken = err
		return
	}

	machine, private, err := r.restore(blob)
	if err != nil {
		r.log.Error().Err(err).Msg("restoring room state")
		r.broken = err
		return
	}
	r.machine = machine
	r.private = private
	r.snapshot = blob
	r.log.Info().Str("status", string(machine.Header().Status)).Msg("room restored")

	if machine.Deadline().IsZero() {
		if err := r.store.DeleteAlarm(ctx, r.key); err != nil {
			r.log.Warn().Err(err).Msg("clearing stale alarm")
		}
		return
	}
	r.syncDeadline(ctx)
}

func (r *Room) restore(blob []byte) (Machine, bool, error) {
	var p persistedState
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, false, fmt.Errorf("decoding envelope: %w", err)
	}
	if p.Kind != r.kind {
		return nil, false, fmt.Errorf("state is for %q, room is %q", p.Kind, r.kind)
	}
	m, err := r.factory.Restore(p.State)
	return m, p.Private, err
}

func (r *Room) persist(ctx context.Context) error {
	state, err := json.Marshal(r.machine)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	blob, err := json.Marshal(persistedState{Kind: r.kind, Private: r.private, State: state})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := r.store.Put(ctx, r.key, blob); err != nil {
		return err
	}
	r.snapshot = blob
	return nil
}

// rollback puts the last persisted state back in place after a failed write,
// so memory never runs ahead of storage.
func (r *Room) rollback() {
	if r.snapshot == nil {
		r.machine = nil
		return
	}
	machine, _, err := r.restore(r.snapshot)
	if err != nil {
		r.log.Error().Err(err).Msg("rollback failed")
		return
	}
	r.machine = machine
}

func (r *Room) syncDeadline(ctx context.Context) {
	if r.machine == nil {
		return
	}
	want := r.machine.Deadline()
	pending := r.scheduler.Pending()

	var err error
	switch {
	case want.IsZero() && !pending.IsZero():
		err = r.scheduler.Cancel(ctx)
	case !want.IsZero() && !want.Equal(pending):
		err = r.scheduler.Arm(ctx, want)
	}
	if err != nil {
		r.log.Error().Err(err).Msg("scheduling deadline")
	}
}

func (r *Room) handleJoinRequest(ctx context.Context, req roomJoinRequest) {
	client := req.client

	if r.broken != nil {
		req.errChan <- Unavailable("room state could not be loaded")
		return
	}

	if r.machine == nil {
		if !req.host {
			req.errChan <- ErrRoomNotFound
			return
		}
		now := r.clock.Now()
		r.machine = r.factory.New(req.settings, client.id, now)
		r.private = BoolSetting(req.settings, "private")
		if err := r.persist(ctx); err != nil {
			r.log.Error().Err(err).Msg("persisting new room")
			r.machine = nil
			req.errChan <- Unavailable("room could not be created")
			return
		}
		r.syncDeadline(ctx)
		r.log.Info().Str("host", client.id).Msg("room created")
	}

	client.room = r
	r.clients[client.id] = client
	r.order = append(r.order, client.id)
	req.errChan <- nil

	client.Send(MakePacketState(r.machine.View(client.id), r.flags(client.id)))
	r.parent.RequestUpdateDescription(r.Description())
}

func (r *Room) handleRemoveClient(ctx context.Context, c *Client) {
	if r.clients[c.id] != c {
		return
	}
	delete(r.clients, c.id)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == c.id })
	c.Close("disconnected")

	r.departure(ctx, c.id)
	r.parent.RequestUpdateDescription(r.Description())
}

func (r *Room) handleEnvelope(ctx context.Context, env clientEnvelope) {
	c := env.from
	if r.clients[c.id] != c {
		return
	}

	typ, err := parseHead(env.raw)
	if err != nil {
		r.reject(c.id, err)
		return
	}
	if r.machine == nil {
		r.reject(c.id, NotFound("room has no game"))
		return
	}

	now := r.clock.Now()
	switch typ {
	case TypePing:
		c.Send(MakePacketPong(now))
	case TypeJoin:
		r.handleJoin(ctx, c.id, env.raw, now)
	case TypeLeave:
		if !r.machine.Header().IsMember(c.id) {
			r.reject(c.id, InvalidPhase("not in the game"))
			return
		}
		r.departure(ctx, c.id)
	case TypeRestart:
		if !r.machine.Header().IsHost(c.id) {
			r.reject(c.id, Unauthorized("only the host can restart"))
			return
		}
		r.apply(ctx, c.id, func() (Outcome, error) {
			r.machine.Reset(now)
			return Changed(), nil
		})
	default:
		cmd := Command{Sender: c.id, Type: typ, Payload: env.raw, At: now}
		r.apply(ctx, c.id, func() (Outcome, error) {
			return r.machine.Apply(ctx, cmd)
		})
	}
	r.parent.RequestUpdateDescription(r.Description())
}

func (r *Room) handleJoin(ctx context.Context, id string, raw []byte, now time.Time) {
	name, err := parseJoin(raw)
	if err != nil {
		r.reject(id, err)
		return
	}
	h := r.machine.Header()
	if h.IsMember(id) {
		r.reject(id, InvalidPhase("already joined"))
		return
	}
	if len(h.Members) >= r.machine.MaxPlayers() {
		r.reject(id, InvalidPhase("room is full"))
		return
	}

	member := Member{ID: id, Name: name}
	r.apply(ctx, id, func() (Outcome, error) {
		h.addMember(member)
		out, err := r.machine.Apply(ctx, Joined{Member: member, At: now})
		if err != nil {
			h.removeMember(id)
			return out, err
		}
		out.Changed = true
		out.Events = append([]Send{Broadcast(MakePacketPlayerJoined(member))}, out.Events...)
		return out, nil
	})
}

// departure removes a player (explicit leave or disconnect) and migrates the
// host role when needed.
func (r *Room) departure(ctx context.Context, id string) {
	if r.machine == nil {
		return
	}
	h := r.machine.Header()
	now := r.clock.Now()

	r.apply(ctx, id, func() (Outcome, error) {
		var out Outcome
		if h.IsMember(id) {
			var err error
			out, err = r.machine.Apply(ctx, Left{ID: id, At: now})
			if err != nil {
				return out, err
			}
			h.removeMember(id)
			out.Changed = true
		}
		if h.HostID == id {
			h.migrateHost(id, r.order)
			out.Changed = true
		}
		if out.Changed {
			out.Events = append([]Send{Broadcast(MakePacketPlayerLeft(id, h.HostID))}, out.Events...)
		}
		return out, nil
	})
}

func (r *Room) handleAlarm(ctx context.Context, firedAt time.Time) {
	pending := r.scheduler.Pending()
	if r.machine == nil || pending.IsZero() {
		r.log.Debug().Time("fired_at", firedAt).Msg("stale alarm ignored")
		return
	}
	if !Due(pending, firedAt) {
		r.log.Debug().Time("fired_at", firedAt).Time("deadline", pending).Msg("early alarm, re-arming")
		if err := r.scheduler.Arm(ctx, pending); err != nil {
			r.log.Error().Err(err).Msg("re-arming early alarm")
		}
		return
	}

	committed := r.apply(ctx, "", func() (Outcome, error) {
		return r.machine.Apply(ctx, AlarmFired{At: firedAt})
	})
	if !committed {
		retry := r.clock.Now().Add(alarmRetry)
		r.log.Warn().Time("deadline", pending).Time("retry_at", retry).Msg("deadline transition not saved, retrying")
		if err := r.scheduler.Arm(ctx, retry); err != nil {
			r.log.Error().Err(err).Msg("re-arming unsaved deadline")
		}
		return
	}

	if r.machine != nil && r.machine.Deadline().Equal(pending) {
		r.log.Warn().Time("deadline", pending).Msg("deadline fired but phase did not advance")
		if err := r.scheduler.Cancel(ctx); err != nil {
			r.log.Error().Err(err).Msg("cancelling spent alarm")
		}
	}
}

// apply runs one mutation through validate → mutate → persist → schedule →
// broadcast. fn must leave the state untouched when it returns an error.
// It reports whether the mutation went through.
func (r *Room) apply(ctx context.Context, sender string, fn func() (Outcome, error)) bool {
	out, err := fn()
	if err != nil {
		r.reject(sender, err)
		return false
	}

	if out.Changed {
		if err := r.persist(ctx); err != nil {
			r.log.Error().Err(err).Msg("persisting state")
			r.rollback()
			r.reject(sender, Unavailable("state could not be saved"))
			return false
		}
	}
	r.syncDeadline(ctx)
	r.dispatch(out.Events)
	if out.Changed && !out.Quiet {
		r.broadcastState()
	}
	return true
}

func (r *Room) reject(to string, err error) {
	var ce *CommandError
	if !errors.As(err, &ce) {
		r.log.Error().Err(err).Str("player", to).Msg("command failed")
		ce = Unavailable("internal error")
	}
	if c, ok := r.clients[to]; ok {
		c.Send(MakePacketError(ce.Code, ce.Message))
	}
}

func (r *Room) dispatch(events []Send) {
	for _, ev := range events {
		if ev.To != "" {
			if c, ok := r.clients[ev.To]; ok {
				c.Send(ev.Packet)
			}
			continue
		}
		for _, id := range r.order {
			r.clients[id].Send(ev.Packet)
		}
	}
}

func (r *Room) broadcastState() {
	if r.machine == nil {
		return
	}
	for _, id := range r.order {
		r.clients[id].Send(MakePacketState(r.machine.View(id), r.flags(id)))
	}
}

func (r *Room) flags(id string) ViewerFlags {
	h := r.machine.Header()
	return ViewerFlags{PlayerID: id, IsHost: h.IsHost(id), Joined: h.IsMember(id)}
}
