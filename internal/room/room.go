package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/typeloop/typerace-backend/internal/bot"
	"github.com/typeloop/typerace-backend/internal/race"
)

type Msg interface{ isRoomMsg() }

// Join registers a human participant and the outbox its connection
// wants snapshots delivered to.
type Join struct {
	ID     string
	Name   string
	Outbox chan race.Snapshot
}

func (Join) isRoomMsg() {}

type Leave struct{ ID string }

func (Leave) isRoomMsg() {}

// Start requests the waiting→countdown transition.
type Start struct{}

func (Start) isRoomMsg() {}

// Telemetry carries one client-reported progress sample.
type Telemetry struct {
	ID       string
	Progress float64
	Position int
	Errors   int
}

func (Telemetry) isRoomMsg() {}

type Finish struct{ ID string }

func (Finish) isRoomMsg() {}

// GetState reflects internal state without data races; used by tests
// and the registry sweep.
type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// countdownElapsed and botTick are the scheduled callbacks feeding
// timer work back into the same serialized loop as client events.
type countdownElapsed struct{}

func (countdownElapsed) isRoomMsg() {}

type botTick struct{ ID string }

func (botTick) isRoomMsg() {}

type View struct {
	NumClients int
	Snapshot   race.Snapshot
}

type Options struct {
	CountdownDelay time.Duration
	TickPeriod     time.Duration
	// OnEmpty is invoked from the room loop when the last human leaves.
	OnEmpty func(key string)
	Logger  *zap.Logger
}

const (
	defaultCountdownDelay = 5 * time.Second
	defaultTickPeriod     = 200 * time.Millisecond
)

type botRunner struct {
	profile *bot.Profile
	stop    chan struct{}
	stopped bool // owned by the room loop
}

// Room owns one race. All mutation flows through the inbox and is
// applied by a single goroutine, so two events for the same race never
// interleave; rooms for different keys run fully in parallel.
type Room struct {
	key     string
	inbox   chan Msg
	state   *race.Race
	clients map[string]chan race.Snapshot
	bots    map[string]*botRunner
	opts    Options
	log     *zap.Logger

	countdown *time.Timer
	ctx       context.Context
	cancel    context.CancelFunc
}

// New starts the room's loop. The race and bot profiles are handed
// over at construction; the caller must not touch them afterwards.
func New(parent context.Context, st *race.Race, profiles map[string]*bot.Profile, opts Options) *Room {
	if opts.CountdownDelay <= 0 {
		opts.CountdownDelay = defaultCountdownDelay
	}
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = defaultTickPeriod
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		key:     st.Key,
		inbox:   make(chan Msg, 64),
		state:   st,
		clients: make(map[string]chan race.Snapshot),
		bots:    make(map[string]*botRunner),
		opts:    opts,
		log:     opts.Logger.With(zap.String("room", st.Key)),
		ctx:     ctx,
		cancel:  cancel,
	}
	for id, p := range profiles {
		r.bots[id] = &botRunner{profile: p, stop: make(chan struct{})}
	}

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ID] = msg.Outbox
				r.state.AddParticipant(msg.ID, msg.Name, false)
				r.broadcast()

			case Leave:
				if ch, ok := r.clients[msg.ID]; ok {
					close(ch)
					delete(r.clients, msg.ID)
				}
				changed := r.state.RemoveParticipant(msg.ID)
				if r.state.HumanCount() == 0 {
					r.stopAllBots()
					if r.opts.OnEmpty != nil {
						r.opts.OnEmpty(r.key)
					}
					break
				}
				if changed {
					r.broadcast()
				}

			case Start:
				if !r.state.StartCountdown() {
					break
				}
				r.broadcast()
				r.countdown = time.AfterFunc(r.opts.CountdownDelay, func() {
					select {
					case r.inbox <- countdownElapsed{}:
					case <-r.ctx.Done():
					}
				})

			case countdownElapsed:
				if !r.state.BeginRacing(time.Now()) {
					break
				}
				for id, b := range r.bots {
					go r.runBot(id, b)
				}
				r.broadcast()

			case Telemetry:
				if r.state.ApplyTelemetry(msg.ID, msg.Progress, msg.Position, msg.Errors, time.Now()) {
					if r.state.Status == race.StatusFinished {
						r.stopAllBots()
					}
					r.broadcast()
				}

			case Finish:
				if r.state.ApplyFinish(msg.ID, time.Now()) {
					if r.state.Status == race.StatusFinished {
						r.stopAllBots()
					}
					r.broadcast()
				}

			case botTick:
				r.handleBotTick(msg.ID)

			case GetState:
				msg.Reply <- View{
					NumClients: len(r.clients),
					Snapshot:   r.state.Snapshot(),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleBotTick(id string) {
	b := r.bots[id]
	if b == nil || b.stopped {
		// Tick raced a stop; drop it.
		return
	}
	if r.state.Status != race.StatusRacing || r.state.StartTime == nil {
		return
	}

	res := b.profile.Step(time.Since(*r.state.StartTime))
	changed := r.state.ApplyBotStep(id, res.Progress, res.WPM, res.Accuracy, time.Now())

	if res.Done {
		r.stopBot(id)
	}
	if r.state.Status == race.StatusFinished {
		r.stopAllBots()
	}
	if changed {
		r.broadcast()
	}
}

// runBot feeds tick messages into the room loop until stopped. The
// goroutine never touches race state itself.
func (r *Room) runBot(id string, b *botRunner) {
	t := time.NewTicker(r.opts.TickPeriod)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-r.ctx.Done():
			return
		case <-t.C:
			select {
			case r.inbox <- botTick{ID: id}:
			case <-b.stop:
				return
			case <-r.ctx.Done():
				return
			}
		}
	}
}

// stopBot is idempotent: a second stop for the same bot is a no-op,
// and a stopped bot never mutates the race again.
func (r *Room) stopBot(id string) {
	b := r.bots[id]
	if b == nil || b.stopped {
		return
	}
	b.stopped = true
	close(b.stop)
}

func (r *Room) stopAllBots() {
	for id := range r.bots {
		r.stopBot(id)
	}
}

func (r *Room) shutdown() {
	if r.countdown != nil {
		r.countdown.Stop()
	}
	r.stopAllBots()
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) broadcast() {
	snap := r.state.Snapshot()
	for id, ch := range r.clients {
		select {
		case ch <- snap:
			// ok
		default:
			// Client is slow/full - drop them.
			r.log.Debug("dropping slow client", zap.String("client", id))
			close(ch)
			delete(r.clients, id)
		}
	}
}
