package flappy

import (
	"math"
	"math/rand"
)

// Bird is the player. X never changes; the world scrolls past it.
type Bird struct {
	X, Y     float64
	Velocity float64
}

// PipePair is a top and bottom pipe separated by a gap. The top pipe covers
// everything above GapTop and the bottom pipe everything below GapBottom.
type PipePair struct {
	X         float64
	GapTop    float64
	GapBottom float64
	passed    bool
}

// StepResult reports what happened during one tick.
type StepResult struct {
	Reward  float64
	Dead    bool
	Scored  bool // the bird left a gap
	Ceiling bool
}

// World is one headless game. It is not safe for concurrent use; create one per episode.
type World struct {
	Config *Config
	Bird   Bird
	Pipes  []*PipePair
	Tick   int
	Score  int
	Dead   bool

	rng       *rand.Rand
	lastSpawn int
	inGap     bool
}

// NewWorld creates a world whose pipe layout is fully determined by seed.
func NewWorld(cfg *Config, seed int64) *World {
	w := &World{
		Config: cfg,
		Bird:   Bird{X: cfg.Bird.X, Y: cfg.Bird.StartY},
		rng:    rand.New(rand.NewSource(seed)),
	}
	w.lastSpawn = -cfg.spawnInterval()
	w.spawn()
	return w
}

// spawn adds a pipe pair off the right edge when the spawn interval has elapsed.
func (w *World) spawn() {
	c := w.Config
	if w.Tick-w.lastSpawn < c.spawnInterval() {
		return
	}
	w.lastSpawn = w.Tick
	offset := 0.0
	if span := int(c.Pipe.GapOffset); span > 0 {
		offset = float64(w.rng.Intn(2*span+1) - span)
	}
	top := c.World.Height/2 - c.Pipe.Gap/2 + offset
	top = math.Max(0, math.Min(top, c.groundY()-c.Pipe.Gap))
	w.Pipes = append(w.Pipes, &PipePair{
		X:         c.World.Width + c.Pipe.OffScreenOffset,
		GapTop:    top,
		GapBottom: top + c.Pipe.Gap,
	})
}

// NextPipe returns the first pipe pair whose right edge is still ahead of the
// bird, or nil.
func (w *World) NextPipe() *PipePair {
	for _, p := range w.Pipes {
		if p.X+w.Config.Pipe.Width > w.Bird.X {
			return p
		}
	}
	return nil
}

// Inputs returns the sensor values fed to the network: horizontal distance to the
// right edge of the next pipe, and the bird's vertical offset from the top and
// bottom of its gap. With no pipe ahead the gap is assumed centred one screen away.
func (w *World) Inputs() []float64 {
	c := w.Config
	dx := c.World.Width
	top := c.World.Height/2 - c.Pipe.Gap/2
	btm := top + c.Pipe.Gap
	if p := w.NextPipe(); p != nil {
		dx = p.X + c.Pipe.Width - w.Bird.X
		top, btm = p.GapTop, p.GapBottom
	}
	in := []float64{dx, w.Bird.Y - top, w.Bird.Y - btm}
	if c.Agent.NormalizeInputs {
		in[0] /= c.World.Width
		in[1] /= c.World.Height
		in[2] /= c.World.Height
	}
	return in
}

// Step advances the world by one tick. flap is the agent's decision for this tick.
// Stepping a dead world does nothing.
func (w *World) Step(flap bool) StepResult {
	var res StepResult
	if w.Dead {
		res.Dead = true
		return res
	}
	c := w.Config
	b := &w.Bird

	// Flapping is ignored above the screen.
	if flap && b.Y >= 0 {
		b.Y -= c.Bird.JumpHeight * c.World.Speed
		b.Velocity = c.Bird.JumpVelocity
	}
	if b.Velocity < c.Bird.MaxVelocity {
		b.Velocity = math.Min(b.Velocity+c.Bird.DropRate*c.World.Speed, c.Bird.MaxVelocity)
	}
	b.Y += b.Velocity

	kept := w.Pipes[:0]
	for _, p := range w.Pipes {
		p.X -= c.World.Speed
		if p.X+c.Pipe.Width >= -c.Pipe.OffScreenOffset {
			kept = append(kept, p)
		}
	}
	w.Pipes = kept
	w.Tick++
	w.spawn()

	if b.Y <= 0 {
		res.Ceiling = true
		res.Reward -= c.Rewards.Penalty
	}
	if b.Y+c.Bird.Height >= c.groundY() {
		res.Reward -= c.Rewards.Penalty
		w.Dead = true
	}
	if w.hitsPipe() {
		w.Dead = true
	}
	if w.Dead {
		res.Dead = true
		return res
	}

	enter, leave := w.updateGap()
	if enter {
		res.Reward += c.Rewards.Score
	}
	if leave {
		res.Reward += c.Rewards.Score
		res.Scored = true
		w.Score++
	}
	res.Reward += c.Rewards.Alive
	return res
}

func (w *World) hitsPipe() bool {
	c := w.Config
	b := w.Bird
	for _, p := range w.Pipes {
		if b.X+c.Bird.Width <= p.X || b.X >= p.X+c.Pipe.Width {
			continue
		}
		if b.Y < p.GapTop || b.Y+c.Bird.Height > p.GapBottom {
			return true
		}
	}
	return false
}

// updateGap tracks the bird entering and leaving the horizontal span of a pipe
// pair. Each pair can be entered and left once.
func (w *World) updateGap() (enter, leave bool) {
	c := w.Config
	b := w.Bird
	inside := false
	for _, p := range w.Pipes {
		if p.passed {
			continue
		}
		if p.X+c.Pipe.Width <= b.X {
			p.passed = true
			leave = leave || w.inGap
			continue
		}
		if b.X+c.Bird.Width > p.X {
			inside = true
		}
		break
	}
	if inside && !w.inGap {
		enter = true
	}
	w.inGap = inside
	return enter, leave
}
