package store

import (
	"context"
	"errors"

	"github.com/fakeyudi/tomato/internal/timer"
)

// TimerRepository maps the timer's persisted layout onto a Store.
type TimerRepository struct {
	kv Store
}

func NewTimerRepository(kv Store) *TimerRepository {
	return &TimerRepository{kv: kv}
}

// Load returns timer.ErrNoState before the first Save.
func (r *TimerRepository) Load(ctx context.Context) (timer.State, error) {
	var st timer.State
	if err := r.kv.Get(ctx, KeyTimerState, &st); err != nil {
		if errors.Is(err, ErrNotFound) {
			return timer.State{}, timer.ErrNoState
		}
		return timer.State{}, err
	}
	return st, nil
}

func (r *TimerRepository) Save(ctx context.Context, st timer.State) error {
	return r.kv.Set(ctx, KeyTimerState, st)
}

// EnsureDefaults records the default durations the first time it runs and
// returns whatever is stored afterwards. Readable keys are never overwritten.
func (r *TimerRepository) EnsureDefaults(ctx context.Context, workSeconds, breakSeconds int) (int, int, error) {
	work, err := r.ensureInt(ctx, KeyDefaultWorkSeconds, workSeconds)
	if err != nil {
		return 0, 0, err
	}
	brk, err := r.ensureInt(ctx, KeyDefaultBreakSeconds, breakSeconds)
	if err != nil {
		return 0, 0, err
	}
	return work, brk, nil
}

func (r *TimerRepository) ensureInt(ctx context.Context, key string, fallback int) (int, error) {
	var v int
	err := r.kv.Get(ctx, key, &v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrCorrupt) {
		return 0, err
	}
	if err := r.kv.Set(ctx, key, fallback); err != nil {
		return 0, err
	}
	return fallback, nil
}
