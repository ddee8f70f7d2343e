package trigger

// Evaluator runs a trigger over a sample stream in software. Stages are
// matched in order; each stage must match on a later sample than the one
// before it. Once the last stage matched the evaluator stays fired.
type Evaluator struct {
	t     *Trigger
	stage int
	fired bool

	prevLogic  []byte
	prevAnalog map[int]float32
}

// NewEvaluator creates an evaluator for t. A trigger without stages fires
// on the first sample.
func NewEvaluator(t *Trigger) *Evaluator {
	return &Evaluator{t: t, prevAnalog: make(map[int]float32)}
}

// Fired reports whether the final stage has matched.
func (e *Evaluator) Fired() bool { return e.fired }

// Stage returns the index of the stage currently being matched.
func (e *Evaluator) Stage() int { return e.stage }

// Reset rewinds the evaluator to the first stage.
func (e *Evaluator) Reset() {
	e.stage = 0
	e.fired = false
	e.prevLogic = nil
	e.prevAnalog = make(map[int]float32)
}

func (e *Evaluator) stages() int {
	if e.t == nil {
		return 0
	}
	return len(e.t.Stages)
}

// Logic feeds packed logic samples and returns the offset of the sample on
// which the trigger fired, or -1.
func (e *Evaluator) Logic(data []byte, unitSize int) int {
	if e.fired || unitSize <= 0 {
		return -1
	}
	n := len(data) / unitSize
	for i := 0; i < n; i++ {
		sample := data[i*unitSize : (i+1)*unitSize]
		if e.stages() == 0 {
			e.fired = true
			return i
		}
		matched := e.logicStage(e.t.Stages[e.stage], sample)
		e.prevLogic = append(e.prevLogic[:0], sample...)
		if matched && e.advance() {
			return i
		}
	}
	return -1
}

// Analog feeds interleaved analog samples for the given channel indices and
// returns the per-channel sample offset on which the trigger fired, or -1.
func (e *Evaluator) Analog(channels []int, values []float32) int {
	if e.fired || len(channels) == 0 {
		return -1
	}
	n := len(values) / len(channels)
	for i := 0; i < n; i++ {
		sample := values[i*len(channels) : (i+1)*len(channels)]
		if e.stages() == 0 {
			e.fired = true
			return i
		}
		matched := e.analogStage(e.t.Stages[e.stage], channels, sample)
		for j, ch := range channels {
			e.prevAnalog[ch] = sample[j]
		}
		if matched && e.advance() {
			return i
		}
	}
	return -1
}

// advance moves past a matched stage and reports whether that was the last.
func (e *Evaluator) advance() bool {
	e.stage++
	if e.stage >= e.stages() {
		e.fired = true
		return true
	}
	return false
}

func bit(sample []byte, index int) (bool, bool) {
	if index < 0 || index/8 >= len(sample) {
		return false, false
	}
	return sample[index/8]&(1<<(index%8)) != 0, true
}

func (e *Evaluator) logicStage(s *Stage, sample []byte) bool {
	if len(s.Matches) == 0 {
		return true
	}
	for _, m := range s.Matches {
		if m.Channel.Analog {
			return false
		}
		cur, ok := bit(sample, m.Channel.Index)
		if !ok {
			return false
		}
		prev, hasPrev := bit(e.prevLogic, m.Channel.Index)
		switch m.Type {
		case MatchZero:
			if cur {
				return false
			}
		case MatchOne:
			if !cur {
				return false
			}
		case MatchRising:
			if !hasPrev || prev || !cur {
				return false
			}
		case MatchFalling:
			if !hasPrev || !prev || cur {
				return false
			}
		case MatchEdge:
			if !hasPrev || prev == cur {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (e *Evaluator) analogStage(s *Stage, channels []int, sample []float32) bool {
	if len(s.Matches) == 0 {
		return true
	}
	for _, m := range s.Matches {
		if !m.Channel.Analog {
			return false
		}
		pos := -1
		for j, ch := range channels {
			if ch == m.Channel.Index {
				pos = j
				break
			}
		}
		if pos < 0 {
			return false
		}
		cur := float64(sample[pos])
		p, hasPrev := e.prevAnalog[m.Channel.Index]
		prev := float64(p)
		switch m.Type {
		case MatchOver:
			if cur <= m.Value {
				return false
			}
		case MatchUnder:
			if cur >= m.Value {
				return false
			}
		case MatchRising:
			if !hasPrev || !(prev < m.Value && cur >= m.Value) {
				return false
			}
		case MatchFalling:
			if !hasPrev || !(prev > m.Value && cur <= m.Value) {
				return false
			}
		case MatchEdge:
			rising := prev < m.Value && cur >= m.Value
			falling := prev > m.Value && cur <= m.Value
			if !hasPrev || !(rising || falling) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
