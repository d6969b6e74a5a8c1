package registry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/typeloop/typerace-backend/internal/bot"
	"github.com/typeloop/typerace-backend/internal/race"
	"github.com/typeloop/typerace-backend/internal/room"
	"github.com/typeloop/typerace-backend/internal/texts"
)

type Msg interface{ isRegistryMsg() }

// Ensure resolves the room for a key, creating it on first use.
// Idempotent per key: Config is only consulted when creation happens.
type Ensure struct {
	Key    string
	Config Config
	Reply  chan *room.Room
}

func (Ensure) isRegistryMsg() {}

type Get struct {
	Key   string
	Reply chan *room.Room
}

func (Get) isRegistryMsg() {}

type Remove struct{ Key string }

func (Remove) isRegistryMsg() {}

type Shutdown struct{}

func (Shutdown) isRegistryMsg() {}

type sweep struct{}

func (sweep) isRegistryMsg() {}

// Config describes how a race should be populated at creation.
type Config struct {
	ComputerMode bool
	NumBots      int
	Difficulty   string
}

type Options struct {
	SweepInterval  time.Duration
	Retention      time.Duration
	CountdownDelay time.Duration
	TickPeriod     time.Duration
	Logger         *zap.Logger
	Seed           int64
}

const (
	defaultSweepInterval = 5 * time.Minute
	defaultRetention     = 10 * time.Minute
	defaultNumBots       = 3
)

// Registry owns the process-wide key→room map. Like each room it is an
// actor: one goroutine applies all map mutations, so concurrent
// connection handlers never race on insertion or removal.
type Registry struct {
	inbox  chan Msg
	rooms  map[string]*room.Room
	opts   Options
	log    *zap.Logger
	rng    *rand.Rand
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, opts Options) *Registry {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(parent)
	g := &Registry{
		inbox:  make(chan Msg, 64),
		rooms:  make(map[string]*room.Room),
		opts:   opts,
		log:    opts.Logger,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		ctx:    ctx,
		cancel: cancel,
	}
	go g.loop()
	go g.runSweeper()
	return g
}

func (g *Registry) Inbox() chan<- Msg { return g.inbox }

func (g *Registry) loop() {
	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case m := <-g.inbox:
			switch msg := m.(type) {
			case Ensure:
				if rm := g.rooms[msg.Key]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := g.create(msg.Key, msg.Config)
				g.rooms[msg.Key] = rm
				msg.Reply <- rm

			case Get:
				msg.Reply <- g.rooms[msg.Key] // May be nil

			case Remove:
				g.remove(msg.Key)

			case sweep:
				g.runSweep()

			case Shutdown:
				g.shutdown()
				return
			}
		}
	}
}

// create allocates a race with a random passage and, in computer mode,
// its bot participants. Bot IDs derive from the room key and index so
// they are unique within the room without coordination.
func (g *Registry) create(key string, cfg Config) *room.Room {
	text := texts.Random(g.rng)
	st := race.New(key, text, cfg.ComputerMode)

	profiles := map[string]*bot.Profile{}
	if cfg.ComputerMode {
		n := cfg.NumBots
		if n <= 0 {
			n = defaultNumBots
		}
		diff := bot.ParseDifficulty(cfg.Difficulty)
		for i := 1; i <= n; i++ {
			id := fmt.Sprintf("%s-bot-%d", key, i)
			prof := bot.NewProfile(diff, len(text), rand.New(rand.NewSource(g.rng.Int63())))
			p := st.AddParticipant(id, fmt.Sprintf("Bot %d", i), true)
			p.WPM = int(math.Round(prof.Speed))
			profiles[id] = prof
		}
	}

	g.log.Info("room created",
		zap.String("room", key),
		zap.Bool("computerMode", cfg.ComputerMode),
		zap.Int("bots", len(profiles)))

	return room.New(g.ctx, st, profiles, room.Options{
		CountdownDelay: g.opts.CountdownDelay,
		TickPeriod:     g.opts.TickPeriod,
		OnEmpty: func(k string) {
			// Invoked from the room loop; never block it on the
			// registry, which may itself be waiting on this room's
			// GetState reply during a sweep.
			go func() {
				select {
				case g.inbox <- Remove{Key: k}:
				case <-g.ctx.Done():
				}
			}()
		},
		Logger: g.opts.Logger,
	})
}

func (g *Registry) remove(key string) {
	rm := g.rooms[key]
	if rm == nil {
		return
	}
	delete(g.rooms, key)
	rm.Inbox() <- room.Shutdown{}
	g.log.Info("room removed", zap.String("room", key))
}

// runSweep evicts rooms whose race has no human participants left or
// has sat in finished status past the retention window. Bots alone
// never keep a room alive: a provisioned computer-mode room nobody
// joins is swept like any other empty room.
func (g *Registry) runSweep() {
	now := time.Now()
	for key, rm := range g.rooms {
		reply := make(chan room.View, 1)
		rm.Inbox() <- room.GetState{Reply: reply}
		view := <-reply

		snap := view.Snapshot
		humans := 0
		for _, p := range snap.Participants {
			if !p.IsBot {
				humans++
			}
		}
		expired := snap.Status == race.StatusFinished &&
			snap.EndTime != nil &&
			now.Sub(*snap.EndTime) > g.opts.Retention
		if humans == 0 || expired {
			g.remove(key)
		}
	}
}

func (g *Registry) runSweeper() {
	t := time.NewTicker(g.opts.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-g.ctx.Done():
			return
		case <-t.C:
			select {
			case g.inbox <- sweep{}:
			case <-g.ctx.Done():
				return
			}
		}
	}
}

func (g *Registry) shutdown() {
	for _, rm := range g.rooms {
		rm.Inbox() <- room.Shutdown{}
	}
	clear(g.rooms)
	g.cancel()
}
