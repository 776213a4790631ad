package backend

import "log/slog"

// Stage identifies one step of backend initialization.
type Stage int

const (
	StageLoop Stage = iota + 1
	StageSession
	StageEnumerator
	StageDevice
	StageRenderer
	StageSignals
	StageScan
)

func (s Stage) String() string {
	switch s {
	case StageLoop:
		return "event-loop"
	case StageSession:
		return "session"
	case StageEnumerator:
		return "device-enumerator"
	case StageDevice:
		return "gpu-device"
	case StageRenderer:
		return "renderer"
	case StageSignals:
		return "signals"
	case StageScan:
		return "connector-scan"
	default:
		return "unknown"
	}
}

// stage pairs an acquisition with the release that undoes it. release may be
// nil for stages that own nothing.
type stage struct {
	id      Stage
	acquire func() error
	release func()
}

// runStages acquires stages in order. When one fails, the releases of every
// earlier stage run in reverse order and a *StageError is returned; the failed
// stage's own release never runs.
func runStages(stages []stage, logger *slog.Logger) error {
	for i, st := range stages {
		err := st.acquire()
		if err == nil {
			logger.Debug("backend stage acquired", "stage", st.id)
			continue
		}

		logger.Error("backend stage failed", "stage", st.id, "error", err)
		for j := i - 1; j >= 0; j-- {
			if stages[j].release == nil {
				continue
			}
			logger.Debug("backend stage released", "stage", stages[j].id)
			stages[j].release()
		}
		return &StageError{Stage: st.id, Err: err}
	}
	return nil
}
